package proto

import (
	"strings"
	"testing"
)

func TestSanitizeUsername(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"daphne", "daphne"},
		{"  spaced   out  ", "spaced out"},
		{"ＧＨＯＳＴ４", "GHOST4"},
		{"tab\tand\nnewline", "tab and newline"},
		{"ctrl\x00\x1bchars", "ctrlchars"},
		{"幽靈玩家", "幽靈玩家"},
		{"", ""},
		{" \t\n ", ""},
	}
	for _, c := range cases {
		if got := SanitizeUsername(c.in); got != c.want {
			t.Errorf("SanitizeUsername(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	long := SanitizeUsername(strings.Repeat("x", 40))
	if len([]rune(long)) != 16 {
		t.Fatalf("long name kept %d runes", len([]rune(long)))
	}
}

func TestSanitizeChat(t *testing.T) {
	if got := SanitizeChat("  gg\x07 everyone  "); got != "gg everyone" {
		t.Fatalf("got %q", got)
	}
	long := SanitizeChat(strings.Repeat("a", 300))
	if len([]rune(long)) != 200 {
		t.Fatalf("long chat kept %d runes", len([]rune(long)))
	}
	if got := SanitizeChat("全形標點。保留！"); got != "全形標點。保留！" {
		t.Fatalf("width mangled: %q", got)
	}
}
