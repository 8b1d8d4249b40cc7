// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/kanban/internal/model"
)

// SessionCookieName はセッショントークンを格納するCookieの名前。
const SessionCookieName = "session"

// LoginPath は未認証のページアクセスをリダイレクトする先。
const LoginPath = "/login"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// sessionHolderKey はロギングミドルウェアが認証済みユーザーIDを受け取るためのキー。
var sessionHolderKey = contextKey("session_holder")

// sessionHolder は内側のセッションミドルウェアが認証したユーザーIDを外側へ伝える。
type sessionHolder struct {
	mu sync.Mutex
	id string
}

func (h *sessionHolder) set(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.id = userID
}

func (h *sessionHolder) userID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

func contextWithSessionHolder(ctx context.Context, h *sessionHolder) context.Context {
	return context.WithValue(ctx, sessionHolderKey, h)
}

// Authenticator はセッショントークンの検証に必要なインターフェース。
// auth.Serviceが満たす。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Session, error)
}

// NewSessionMiddleware はCookieのセッショントークンを検証するAPI用ミドルウェアを返す。
// 認証済みセッションをリクエストコンテキストに注入する。
// トークンがない・不正・期限切れのいずれも同じ扱いで、401のJSONを返す。
func NewSessionMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return newSessionMiddleware(authenticator, func(w http.ResponseWriter, r *http.Request) {
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
	})
}

// NewPageSessionMiddleware はページ用のセッションミドルウェアを返す。
// 未認証の場合はログインページへ302でリダイレクトする。
func NewPageSessionMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return newSessionMiddleware(authenticator, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
}

func newSessionMiddleware(authenticator Authenticator, reject http.HandlerFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからトークンを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				reject(w, r)
				return
			}

			// 2. トークンを検証
			session, err := authenticator.Authenticate(r.Context(), cookie.Value)
			if err != nil || session == nil {
				if err != nil {
					slog.Debug("session rejected",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				reject(w, r)
				return
			}

			// 3. 認証済みセッションをコンテキストに注入
			if holder, ok := r.Context().Value(sessionHolderKey).(*sessionHolder); ok {
				holder.set(session.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok || session == nil || session.UserID == "" {
		return nil, false
	}
	return session, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("user ID not found in context")
	}
	return session.UserID, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// ContextWithUserID はユーザーIDだけを持つセッションをコンテキストに注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithSession(ctx, &model.Session{UserID: userID})
}
