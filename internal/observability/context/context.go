package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

type clientInfoKey struct{}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithClientInfo records the caller address and user agent for audit trails.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, clientInfo{
		ip:        strings.TrimSpace(ip),
		userAgent: strings.TrimSpace(userAgent),
	})
}

func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	info, _ := ctx.Value(clientInfoKey{}).(clientInfo)
	return info.ip
}

func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	info, _ := ctx.Value(clientInfoKey{}).(clientInfo)
	return info.userAgent
}
