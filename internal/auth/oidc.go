package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req/v3"
)

// Authentik互換のOpenID Connectエンドポイント
const (
	authorizePath = "/application/o/authorize/"
	tokenPath     = "/application/o/token/"
	userInfoPath  = "/application/o/userinfo/"
)

const defaultOIDCTimeout = 10 * time.Second

// OIDCConfig はOpenID Connectプロバイダーの設定。
type OIDCConfig struct {
	// IssuerURL はブラウザからアクセスするIdPのURL（認可エンドポイント用）。
	IssuerURL string
	// InternalURL はサーバー間通信で使うIdPのURL（token、userinfo用）。空の場合はIssuerURLを使う。
	InternalURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
}

// OIDCProvider はAuthentik互換のIdPによる認可コードフローを提供する。
// リトライは行わない。
type OIDCProvider struct {
	config OIDCConfig
	client *req.Client
}

// NewOIDCProvider はOIDCProviderを生成する。
func NewOIDCProvider(config OIDCConfig) *OIDCProvider {
	config.IssuerURL = strings.TrimRight(config.IssuerURL, "/")
	config.InternalURL = strings.TrimRight(config.InternalURL, "/")
	if config.InternalURL == "" {
		config.InternalURL = config.IssuerURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultOIDCTimeout
	}

	client := req.C().
		SetTimeout(config.Timeout).
		SetUserAgent("kanban/1.0")

	return &OIDCProvider{config: config, client: client}
}

// GetLoginURL はIdPの認可URLを生成する。
func (p *OIDCProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid profile email"},
		"state":         {state},
	}
	return p.config.IssuerURL + authorizePath + "?" + params.Encode()
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token"`
}

// userInfoResponse はuserinfoエンドポイントのレスポンス。
type userInfoResponse struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *OIDCProvider) ExchangeCode(ctx context.Context, code string) (*UserInfo, error) {
	// 1. 認可コードをアクセストークンに交換
	token, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// 2. アクセストークンでユーザー情報を取得
	info, err := p.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	name := info.Name
	if name == "" {
		name = info.PreferredUsername
	}

	return &UserInfo{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    name,
		Picture: info.Picture,
	}, nil
}

func (p *OIDCProvider) exchangeToken(ctx context.Context, code string) (*tokenResponse, error) {
	var token tokenResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "authorization_code",
			"code":          code,
			"redirect_uri":  p.config.RedirectURL,
			"client_id":     p.config.ClientID,
			"client_secret": p.config.ClientSecret,
		}).
		SetSuccessResult(&token).
		Post(p.config.InternalURL + tokenPath)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	if !resp.IsSuccessState() {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.GetStatusCode(), resp.String())
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &token, nil
}

func (p *OIDCProvider) fetchUserInfo(ctx context.Context, accessToken string) (*userInfoResponse, error) {
	var info userInfoResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBearerAuthToken(accessToken).
		SetSuccessResult(&info).
		Get(p.config.InternalURL + userInfoPath)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	if !resp.IsSuccessState() {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.GetStatusCode(), resp.String())
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}

	return &info, nil
}

// compile-time interface check
var _ IdentityProvider = (*OIDCProvider)(nil)
