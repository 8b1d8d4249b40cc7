// Package auth はOpenID Connectによるログインフローとセッショントークンの管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kanban/internal/model"
	"github.com/hitoshi/kanban/internal/repository"
)

// UserInfo はIdPから取得したユーザー情報を表す。
type UserInfo struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityProvider は外部IdPのインターフェース。
type IdentityProvider interface {
	// GetLoginURL は認可URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*UserInfo, error)
}

// Revoker はログアウト済みトークンの失効リストのインターフェース。
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// LoginResult はコールバック処理の結果。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	idp      IdentityProvider
	userRepo repository.UserRepository
	tokens   *TokenManager
	revoker  Revoker
}

// NewService はServiceを生成する。revokerがnilの場合、ログアウト時の失効は行わない。
func NewService(
	idp IdentityProvider,
	userRepo repository.UserRepository,
	tokens *TokenManager,
	revoker Revoker,
) *Service {
	return &Service{
		idp:      idp,
		userRepo: userRepo,
		tokens:   tokens,
		revoker:  revoker,
	}
}

// GetLoginURL はIdPの認可URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.idp.GetLoginURL(state)
}

// HandleCallback は認可コードを交換し、ユーザーを作成または更新してセッショントークンを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*LoginResult, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	info, err := s.idp.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	// 2. subjectをキーにユーザーを作成または更新
	now := time.Now()
	candidate := &model.User{
		ID:         uuid.New().String(),
		ExternalID: info.Subject,
		Email:      info.Email,
		Name:       displayName(info),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if info.Picture != "" {
		picture := info.Picture
		candidate.AvatarURL = &picture
	}

	user, err := s.userRepo.Upsert(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	// 3. セッショントークンを発行
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Bool("new_user", user.ID == candidate.ID),
	)

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate はセッショントークンを検証し、セッション情報を返す。
// 失効リストの参照に失敗した場合は警告ログを出し、トークンを有効として扱う。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	session, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	if s.revoker != nil && session.TokenID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, session.TokenID)
		if err != nil {
			slog.Warn("failed to check token revocation",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
		} else if revoked {
			return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
		}
	}

	return session, nil
}

// Logout はトークンを有効期限まで失効させる。
// トークンが不正な場合や失効リストへの書き込みに失敗した場合もエラーにはしない。
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" || s.revoker == nil {
		return
	}

	session, err := s.tokens.Verify(token)
	if err != nil || session.TokenID == "" {
		return
	}

	if err := s.revoker.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		slog.Warn("failed to revoke session token",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		return
	}

	slog.Info("user logged out", slog.String("user_id", session.UserID))
}

// CurrentUser はセッションのユーザーを取得する。見つからない場合はUNAUTHENTICATEDエラーを返す。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}
	return user, nil
}

// displayName はIdPの表示名を返す。空の場合はメールアドレスのローカル部を使う。
func displayName(info *UserInfo) string {
	if info.Name != "" {
		return info.Name
	}
	if local, _, ok := strings.Cut(info.Email, "@"); ok && local != "" {
		return local
	}
	return info.Email
}
