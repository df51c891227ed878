package proto

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	maxUsernameRunes = 16
	maxChatRunes     = 200
)

// SanitizeUsername normalizes a display name: NFKC, full-width forms
// folded to their narrow equivalents, control runes stripped, interior
// whitespace runs collapsed to single spaces, capped at 16 runes.
// Returns the empty string when nothing printable remains.
func SanitizeUsername(s string) string {
	s = width.Fold.String(norm.NFKC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	count := 0
	for _, r := range s {
		if count >= maxUsernameRunes {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		if unicode.IsSpace(r) {
			pendingSpace = count > 0
			continue
		}
		if pendingSpace {
			b.WriteRune(' ')
			count++
			pendingSpace = false
			if count >= maxUsernameRunes {
				break
			}
		}
		b.WriteRune(r)
		count++
	}
	return strings.TrimRight(b.String(), " ")
}

// SanitizeChat strips control runes from a chat line and caps it at
// 200 runes. No normalization: full-width text renders as typed.
func SanitizeChat(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	count := 0
	for _, r := range s {
		if count >= maxChatRunes {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		count++
	}
	return strings.TrimSpace(b.String())
}
