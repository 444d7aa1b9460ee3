package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Cursor marks the last row of a page in (created_at desc, id desc) order.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// NormalizePageSize clamps size into [1, MaxPageSize], using DefaultPageSize for zero.
func NormalizePageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, ErrInvalidPageToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}
	if cursor.ID == "" || cursor.CreatedAt == "" {
		return nil, ErrInvalidPageToken
	}
	return &cursor, nil
}

// CursorTime parses the cursor timestamp.
func (c Cursor) CursorTime() (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, c.CreatedAt)
	if err != nil {
		return time.Time{}, ErrInvalidPageToken
	}
	return parsed, nil
}

// Page trims a result fetched with limit+1 rows and builds its PageInfo.
func Page[T any](items []T, limit int, cursorOf func(T) Cursor) ([]T, PageInfo) {
	if len(items) <= limit {
		return items, PageInfo{}
	}

	items = items[:limit]
	token, err := EncodeCursor(cursorOf(items[len(items)-1]))
	if err != nil {
		return items, PageInfo{}
	}
	return items, PageInfo{NextPageToken: token, HasMore: true}
}
