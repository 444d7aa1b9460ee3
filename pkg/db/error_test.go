package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm translated", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "pgconn", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "pgconn other code", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "lib/pq", err: &pq.Error{Code: "23505"}, want: true},
		{name: "sqlite message", err: errors.New("UNIQUE constraint failed: sales.org_id, sales.idempotency_key"), want: true},
		{name: "mysql message", err: errors.New("Error 1062: Duplicate entry"), want: true},
		{name: "unrelated", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicateKeyErr(tt.err))
		})
	}
}
