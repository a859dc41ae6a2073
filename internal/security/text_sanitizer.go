// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力したタスク本文を自由記述のテキストとして正規化する。
// HTMLとしては解釈せず、エスケープは表示側の責務とする。
package security

import (
	"strings"
)

// TextSanitizer はテキスト正規化のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は保存可能な形に正規化した文字列を返す。
	// 同一入力に対して常に同一出力を返し、出力に再適用しても変わらない（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
type textSanitizer struct{}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return textSanitizer{}
}

// Sanitize は不正なUTF-8を置換文字に、NUL文字を除去し、前後の空白を取り除く。
// PostgreSQLのJSONBはNUL（\u0000）を格納できない。
// "<" や "&lt;" などの文字列はそのまま保持する。
func (textSanitizer) Sanitize(raw string) string {
	s := strings.ToValidUTF8(raw, "\uFFFD")
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
