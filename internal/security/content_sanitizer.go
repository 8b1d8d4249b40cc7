// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はコメント本文やタスク・プロジェクトの説明文から
// HTMLを除去し、プレーンテキストとして保存できる形にする。
// bluemondayのStrictPolicyで全タグを除去したうえで、文字参照を元の文字に戻す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize は入力からHTMLタグを除去したプレーンテキストを返す。
	// script、styleタグは内容ごと除去する。前後の空白は取り除く。
	// 空文字列の入力には空文字列を返す。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを除去したプレーンテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyは & や < をエスケープして返すため、保存前に元の文字へ戻す
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// SanitizeOptional はnilを保ったままサニタイズする。結果が空になった場合はnilを返す。
func SanitizeOptional(s ContentSanitizerService, raw *string) *string {
	if raw == nil {
		return nil
	}
	clean := s.Sanitize(*raw)
	if clean == "" {
		return nil
	}
	return &clean
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
