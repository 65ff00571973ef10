// Package security は講座の説明文など利用者入力のHTMLを無害化する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// CourseSanitizer は講座の入力テキストを保存前に無害化するインターフェース。
type CourseSanitizer interface {
	// Description は説明文から許可リスト外のタグと属性を除去する。
	Description(raw string) string
}

// courseSanitizer はbluemondayのポリシーを保持する。ポリシーはゴルーチンセーフ。
type courseSanitizer struct {
	policy *bluemonday.Policy
}

// NewCourseSanitizer はCourseSanitizerを生成する。
// 説明文で許可するもの:
//   - 段落・改行・リスト・強調: p, br, ul, ol, li, strong, em, code
//   - a の href（http/https/mailto の絶対URLのみ）。rel="nofollow noreferrer" を付与
func NewCourseSanitizer() CourseSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "strong", "em", "code")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &courseSanitizer{policy: p}
}

func (s *courseSanitizer) Description(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
