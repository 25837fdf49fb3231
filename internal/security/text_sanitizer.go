package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は取り込んだセルの値からマークアップを除去し、プレーンテキストにする。
// 顧客名などは画面にそのまま表示されるため、取り込み時点で無害化しておく。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、前後の空白を取り除いた文字列を返す。
// bluemondayがエスケープした実体参照は元の文字に戻す。
func (s *TextSanitizer) Sanitize(value string) string {
	if value == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(value)))
}
