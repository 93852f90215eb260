package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("What is AI?", 50); got != "What is AI?" {
		t.Errorf("short string changed: %q", got)
	}
	exact := strings.Repeat("a", 50)
	if got := TruncateRunes(exact, 50); got != exact {
		t.Errorf("50-char string changed: %q", got)
	}
	long := strings.Repeat("b", 60)
	got := TruncateRunes(long, 50)
	if got != strings.Repeat("b", 50)+Ellipsis {
		t.Errorf("got %q", got)
	}
	multi := strings.Repeat("é", 60)
	got = TruncateRunes(multi, 50)
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) != 51 {
		t.Errorf("multi-byte truncation broke runes: %q", got)
	}
	if TruncateRunes("x", 0) != "x" {
		t.Error("maxRunes 0 returns as-is")
	}
}
