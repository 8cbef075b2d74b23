// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Package i18n provides localization for everything the user sees on the
// terminal: titles, default button labels, hints and error banners. Protocol
// messages on the wire are never translated.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// localeFS embeds the YAML translation files from the 'locales' directory.
//
//go:embed locales/*.yaml
var localeFS embed.FS

var (
	mu         sync.Mutex
	bundle     *i18n.Bundle
	localizer  *i18n.Localizer
	current    string
	matcher    language.Matcher
	tags       []language.Tag
	localizers = map[string]*i18n.Localizer{}
)

// displayNames maps locale tags to their native names.
var displayNames = map[string]string{
	"en": "English",
	"de": "Deutsch",
}

// Init loads the embedded locale files and selects lang as the active
// language.
func Init(lang string) {
	mu.Lock()
	defer mu.Unlock()
	initLocked(lang)
}

func initLocked(lang string) {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, _ := localeFS.ReadFile("locales/" + f.Name())
		_, _ = bundle.ParseMessageFileBytes(data, f.Name())
	}

	tags = []language.Tag{language.English}
	for _, t := range bundle.LanguageTags() {
		if t != language.English {
			tags = append(tags, t)
		}
	}
	matcher = language.NewMatcher(tags)

	current = Normalize(lang)
	localizers = map[string]*i18n.Localizer{}
	localizer = i18n.NewLocalizer(bundle, current)
	localizers[current] = localizer
}

// T translates messageID into the active language. Extra arguments are
// applied fmt-style, unless a single map is given, which becomes template
// data. Unknown IDs are returned unchanged.
func T(messageID string, args ...any) string {
	mu.Lock()
	if localizer == nil {
		initLocked("en")
	}
	l := localizer
	mu.Unlock()
	return localize(l, messageID, args)
}

// TL translates messageID into lang without touching the active language.
// Sessions use it for the language a client asked for via OPTION
// lc-messages.
func TL(lang, messageID string, args ...any) string {
	if lang == "" {
		return T(messageID, args...)
	}
	mu.Lock()
	if bundle == nil {
		initLocked("en")
	}
	// Cached per embedded locale; lang comes from clients.
	_, idx := language.MatchStrings(matcher, Normalize(lang))
	tag := tags[idx].String()
	l, ok := localizers[tag]
	if !ok {
		l = i18n.NewLocalizer(bundle, tag)
		localizers[tag] = l
	}
	mu.Unlock()
	return localize(l, messageID, args)
}

func localize(l *i18n.Localizer, messageID string, args []any) string {
	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(args) == 1 {
		if data, ok := args[0].(map[string]any); ok {
			cfg.TemplateData = data
			args = nil
		}
	}
	msg, err := l.Localize(cfg)
	if err != nil {
		return messageID
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// SetLang changes the active language.
func SetLang(lang string) {
	Init(lang)
}

// GetLang returns the active language tag.
func GetLang() string {
	mu.Lock()
	defer mu.Unlock()
	if current == "" {
		return "en"
	}
	return current
}

// GetAvailableLocales returns the embedded locales keyed by tag.
func GetAvailableLocales() map[string]string {
	out := make(map[string]string)
	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		tag := strings.TrimSuffix(f.Name(), ".yaml")
		name, ok := displayNames[tag]
		if !ok {
			name = tag
		}
		out[tag] = name
	}
	return out
}

// Normalize turns POSIX locale names as sent in OPTION lc-messages
// ("de_DE.UTF-8", "C") into BCP 47 tags ("de-DE", "en").
func Normalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	lang = strings.ReplaceAll(lang, "_", "-")
	switch lang {
	case "", "C", "POSIX":
		return "en"
	}
	if _, err := language.Parse(lang); err != nil {
		return "en"
	}
	return lang
}
