package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はサーバーから受け取ったユーザー投稿テキストをサニタイズする。
type Sanitizer interface {
	// SanitizeRich はキャンペーン説明文向けに限定的な書式タグのみを残す。
	SanitizeRich(rawHTML string) string
	// SanitizeStrict はすべてのタグを除去する。コメント本文に使用する。
	SanitizeStrict(raw string) string
}

type contentSanitizer struct {
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
// 説明文ポリシー:
//   - 許可タグ: p, br, ul, ol, li, blockquote, strong, em, a
//   - aタグ: hrefは絶対URLのみ、target="_blank" と rel="noopener noreferrer" を付与
//   - 画像はImageURL経由で表示するため本文中のimgは除去する
func NewSanitizer() *contentSanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("p", "br", "ul", "ol", "li", "blockquote", "strong", "em")
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowStandardURLs()
	rich.AllowRelativeURLs(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		rich:   rich,
		strict: bluemonday.StrictPolicy(),
	}
}

// SanitizeRich は説明文用ポリシーでサニタイズする。
func (s *contentSanitizer) SanitizeRich(rawHTML string) string {
	return s.rich.Sanitize(rawHTML)
}

// SanitizeStrict はすべてのタグを除去する。
// bluemondayはエスケープ済みHTMLを返すため、表示用にはPlainTextで展開する。
func (s *contentSanitizer) SanitizeStrict(raw string) string {
	return PlainText(s.strict.Sanitize(raw))
}
