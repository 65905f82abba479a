// Package i18n translates the viewer's user-facing strings.
//
// Usage:
//
//	i18n.Init(i18n.ResolveLocale(cfg.Language))              // at startup
//	i18n.T("tui.loading", "Loading...")                       // simple string
//	i18n.Tf("tui.notice.notFound", "message %d not found", id) // with fmt args
//	i18n.Tn("tui.row.album", "album, {{.Count}} item", "album, {{.Count}} items", n)
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	mu        sync.RWMutex
)

// Init loads the embedded locales and selects lang, falling back to
// English. Safe to call again after a config reload.
func Init(lang string) {
	mu.Lock()
	defer mu.Unlock()

	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, _ := localeFS.ReadDir("locales")
	for _, e := range entries {
		_, _ = bundle.LoadMessageFileFS(localeFS, "locales/"+e.Name())
	}

	localizer = i18n.NewLocalizer(bundle, lang, "en")
}

// Languages returns the tags of the embedded locales, English first.
func Languages() []string {
	mu.RLock()
	b := bundle
	mu.RUnlock()
	if b == nil {
		return []string{"en"}
	}
	var out []string
	for _, tag := range b.LanguageTags() {
		out = append(out, tag.String())
	}
	return out
}

// T returns the localized string for id. defaultMsg is the English text.
func T(id string, defaultMsg string) string {
	mu.RLock()
	l := localizer
	mu.RUnlock()

	if l == nil {
		return defaultMsg
	}

	s, err := l.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID:    id,
			Other: defaultMsg,
		},
	})
	if err != nil {
		return defaultMsg
	}
	return s
}

// Tf returns the localized string with fmt.Sprintf-style formatting.
func Tf(id string, defaultMsg string, args ...any) string {
	return fmt.Sprintf(T(id, defaultMsg), args...)
}

// Tn returns the localized plural form for count. one and other are
// templates that may use {{.Count}}.
func Tn(id string, one string, other string, count int) string {
	mu.RLock()
	l := localizer
	mu.RUnlock()

	fallback := func() string {
		s := other
		if count == 1 {
			s = one
		}
		return strings.ReplaceAll(s, "{{.Count}}", strconv.Itoa(count))
	}
	if l == nil {
		return fallback()
	}

	s, err := l.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID:    id,
			One:   one,
			Other: other,
		},
		PluralCount:  count,
		TemplateData: map[string]int{"Count": count},
	})
	if err != nil {
		return fallback()
	}
	return s
}

// ResolveLocale picks the active locale.
// Priority: HISTVIEW_LANG > configLang > LC_ALL > LANG > "en"
func ResolveLocale(configLang string) string {
	if v := os.Getenv("HISTVIEW_LANG"); v != "" {
		return v
	}
	if configLang != "" {
		return configLang
	}
	if v := os.Getenv("LC_ALL"); v != "" {
		return normalizeLocale(v)
	}
	if v := os.Getenv("LANG"); v != "" {
		return normalizeLocale(v)
	}
	return "en"
}

// normalizeLocale converts a POSIX locale to BCP 47:
// "de_DE.UTF-8" -> "de-DE".
func normalizeLocale(posix string) string {
	if i := strings.IndexByte(posix, '.'); i >= 0 {
		posix = posix[:i]
	}
	if i := strings.IndexByte(posix, '@'); i >= 0 {
		posix = posix[:i]
	}
	return strings.ReplaceAll(posix, "_", "-")
}
