package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	ContextUsername contextKey = "username"
)

func GetUsername(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(ContextUsername).(string)
	return val, ok && val != ""
}

func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ContextUsername, username)
}

func setUsername(r *http.Request, username string) *http.Request {
	return r.WithContext(WithUsername(r.Context(), username))
}
