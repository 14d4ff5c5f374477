// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer は著者名・カテゴリ名・蔵書タイトル・利用者名などの
// プレーンテキスト項目からHTMLマークアップを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizer はプレーンテキスト項目のサニタイズ機能のインターフェース。
type NameSanitizer interface {
	// Sanitize は全てのタグを除去し、連続する空白を1つにまとめ、前後の空白を取り除いた文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はbluemondayのStrictPolicyを使うNameSanitizerの実装。
// Policyはスレッドセーフなので共有してよい。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizeRounds はエンティティの多重エスケープを剥がす回数の上限。
const maxSanitizeRounds = 8

// Sanitize はマークアップを除去したプレーンテキストを返す。
// エンティティ化されたマークアップ（&lt;script&gt;など）は戻した後に再度除去する。
// 出力が変化しなくなるまで繰り返し、上限までに収束しない入力は空文字列にする。
func (s *nameSanitizer) Sanitize(raw string) string {
	text := raw
	for i := 0; i < maxSanitizeRounds; i++ {
		next := s.sanitizeOnce(text)
		if next == text {
			return next
		}
		text = next
	}
	return ""
}

func (s *nameSanitizer) sanitizeOnce(raw string) string {
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは&や<をエンティティにエスケープするため、保存用に元の文字へ戻す
	text := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(text), " ")
}

var _ NameSanitizer = (*nameSanitizer)(nil)
