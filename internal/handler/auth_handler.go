// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/hitoshi/kanban/internal/auth"
	"github.com/hitoshi/kanban/internal/middleware"
	"github.com/hitoshi/kanban/internal/model"
)

// ログインページに渡すエラー種別
const (
	loginErrorAuthFailed  = "auth_failed"
	loginErrorNoCode      = "no_code"
	loginErrorServerError = "server_error"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string)
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOpenID Connect認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はIdPの認可エンドポイントへリダイレクトする。
// GET /api/auth/login
//
// stateはIdPに渡すが、コールバックでは照合しない。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.New().String()
	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// Callback はIdPからのコールバックを処理する。
// GET /api/auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// 1. IdPがエラーを返した場合
	if idpErr := q.Get("error"); idpErr != "" {
		slog.Warn("identity provider returned error",
			slog.String("error", idpErr),
			slog.String("description", q.Get("error_description")),
		)
		redirectToLogin(w, r, loginErrorAuthFailed)
		return
	}

	// 2. 認可コードの取得
	code := q.Get("code")
	if code == "" {
		redirectToLogin(w, r, loginErrorNoCode)
		return
	}

	// 3. 認証処理
	result, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("auth callback failed", slog.String("error", err.Error()))
		redirectToLogin(w, r, loginErrorServerError)
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	h.setSessionCookie(w, result.Token, h.config.SessionMaxAge)

	// 5. トップページにリダイレクト
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout はセッショントークンを失効させ、Cookieをクリアする。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		// 失効に失敗してもCookieはクリアする
		h.service.Logout(r.Context(), cookie.Value)
	}

	h.setSessionCookie(w, "", -1)

	// 画面のフォームから送信された場合はログイン画面へ戻す
	if isFormPost(r) {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// isFormPost はHTMLフォームから送信されたリクエストかどうかを返す。
func isFormPost(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userSummaryResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, middleware.LoginPath+"?error="+url.QueryEscape(reason), http.StatusFound)
}
