// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/packman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// operatorContextKey はリクエストコンテキストに作業者名を格納するためのキー。
var operatorContextKey = contextKey("operator")

// OperatorSource はログイン中の作業者名を返すインターフェース。
// fulfillment.Machineが実装する。
type OperatorSource interface {
	User() string
}

// NewOperatorMiddleware はログイン中の作業者名をリクエストコンテキストに注入する。
// 未ログインでも拒否はしない。拒否はRequireOperatorが行う。
func NewOperatorMiddleware(source OperatorSource) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := source.User(); user != "" {
				r = r.WithContext(ContextWithOperator(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOperator は未ログインのリクエストに401 NOT_LOGGED_INを返すミドルウェアを返す。
// NewOperatorMiddlewareの後に配置する。
func RequireOperator() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := OperatorFromContext(r.Context()); err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OperatorFromContext はリクエストコンテキストから作業者名を取得する。
func OperatorFromContext(ctx context.Context) (string, error) {
	operator, ok := ctx.Value(operatorContextKey).(string)
	if !ok || operator == "" {
		return "", fmt.Errorf("operator not found in context")
	}
	return operator, nil
}

// ContextWithOperator はコンテキストに作業者名を注入する。
func ContextWithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorContextKey, operator)
}
