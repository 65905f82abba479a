package i18n

import (
	"testing"
)

func TestT_ReturnsDefaultMessage(t *testing.T) {
	Init("en")
	got := T("tui.loading", "Loading...")
	if got != "Loading..." {
		t.Errorf("T() = %q, want %q", got, "Loading...")
	}
}

func TestTn_Pluralization(t *testing.T) {
	Init("en")

	one := Tn("test.rows", "{{.Count}} row", "{{.Count}} rows", 1)
	if one != "1 row" {
		t.Errorf("Tn(1) = %q, want %q", one, "1 row")
	}

	many := Tn("test.rows", "{{.Count}} row", "{{.Count}} rows", 5)
	if many != "5 rows" {
		t.Errorf("Tn(5) = %q, want %q", many, "5 rows")
	}
}

func TestInit_FallbackToEnglish(t *testing.T) {
	Init("xx-nonexistent")
	got := T("tui.loading", "Loading...")
	if got != "Loading..." {
		t.Errorf("expected English fallback, got %q", got)
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := map[string]string{
		"de_DE.UTF-8":     "de-DE",
		"en_US":           "en-US",
		"sr_RS@latin":     "sr-RS",
		"fr":              "fr",
		"pt_BR.utf8@euro": "pt-BR",
	}
	for in, want := range tests {
		if got := normalizeLocale(in); got != want {
			t.Errorf("normalizeLocale(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveLocale(t *testing.T) {
	t.Setenv("HISTVIEW_LANG", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LANG", "de_AT.UTF-8")

	if got := ResolveLocale("fr"); got != "fr" {
		t.Errorf("config language ignored: %q", got)
	}
	if got := ResolveLocale(""); got != "de-AT" {
		t.Errorf("LANG ignored: %q", got)
	}
	t.Setenv("HISTVIEW_LANG", "ja")
	if got := ResolveLocale("fr"); got != "ja" {
		t.Errorf("HISTVIEW_LANG ignored: %q", got)
	}
}
