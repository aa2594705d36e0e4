package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var (
	mu              sync.RWMutex
	bundle          *goi18n.Bundle
	localizer       *goi18n.Localizer
	currentLanguage = language.English

	supported = []language.Tag{
		language.English,
		language.SimplifiedChinese,
		language.Chinese,
	}
	matcher = language.NewMatcher(supported)
)

//go:embed locales/*.toml
var localeFS embed.FS

// Init loads the embedded catalogues and picks the UI language from, in order:
// langOverride (--lang), APKDEPLOY_LANG, LC_ALL, LC_MESSAGES, LANG, the
// platform UI language, English.
func Init(langOverride string) error {
	b := goi18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}
	for _, entry := range entries {
		if _, err := b.LoadMessageFileFS(localeFS, "locales/"+entry.Name()); err != nil {
			return fmt.Errorf("load locales/%s: %w", entry.Name(), err)
		}
	}

	chosen := selectLanguage(localeCandidates(langOverride))

	mu.Lock()
	bundle = b
	localizer = goi18n.NewLocalizer(b, chosen.String(), language.English.String())
	currentLanguage = chosen
	mu.Unlock()

	return nil
}

// T translates a message by ID with optional template data.
// Unknown IDs come back unchanged so output is never empty.
func T(id string, data ...map[string]interface{}) string {
	var templateData map[string]interface{}
	if len(data) > 0 {
		templateData = data[0]
	}

	l := currentLocalizer()
	if l == nil {
		return id
	}

	msg, err := l.Localize(&goi18n.LocalizeConfig{
		MessageID:      id,
		TemplateData:   templateData,
		PluralCount:    pluralCount(templateData),
		DefaultMessage: &goi18n.Message{ID: id, Other: id},
	})
	if err != nil || msg == "" {
		return id
	}
	return msg
}

// CurrentLanguage returns the chosen language tag.
func CurrentLanguage() language.Tag {
	mu.RLock()
	defer mu.RUnlock()
	return currentLanguage
}

func currentLocalizer() *goi18n.Localizer {
	mu.RLock()
	l := localizer
	mu.RUnlock()
	if l != nil {
		return l
	}

	if err := Init(""); err != nil {
		fmt.Fprintf(os.Stderr, "i18n init failed: %v\n", err)
		return nil
	}
	mu.RLock()
	defer mu.RUnlock()
	return localizer
}

func localeCandidates(langOverride string) []string {
	var candidates []string
	if langOverride != "" {
		candidates = append(candidates, langOverride)
	}
	for _, key := range []string{"APKDEPLOY_LANG", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			candidates = append(candidates, val)
		}
	}
	// Windows rarely sets the locale variables.
	if len(candidates) == 0 {
		candidates = append(candidates, getPlatformLocales()...)
	}
	return candidates
}

func selectLanguage(candidates []string) language.Tag {
	var tags []language.Tag
	for _, cand := range candidates {
		if tag, ok := parseLocale(cand); ok {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return language.English
	}

	// The first candidate wins; the matcher only maps it onto a supported tag.
	tag, _, conf := matcher.Match(tags[0])
	if conf == language.No {
		return language.English
	}
	if base, _ := tag.Base(); base.String() == "zh" {
		return language.Chinese
	}
	return language.English
}

// parseLocale accepts POSIX forms like zh_CN.UTF-8 as well as BCP 47 tags.
func parseLocale(s string) (language.Tag, bool) {
	clean := strings.TrimSpace(s)
	if idx := strings.IndexAny(clean, ".@"); idx >= 0 {
		clean = clean[:idx]
	}
	clean = strings.ReplaceAll(clean, "_", "-")
	if clean == "" || strings.EqualFold(clean, "C") || strings.EqualFold(clean, "POSIX") {
		return language.Und, false
	}

	tag, err := language.Parse(clean)
	if err == nil {
		return tag, true
	}

	lower := strings.ToLower(clean)
	switch {
	case strings.HasPrefix(lower, "zh"):
		return language.Chinese, true
	case strings.HasPrefix(lower, "en"):
		return language.English, true
	}
	return language.Und, false
}

func pluralCount(data map[string]interface{}) interface{} {
	for _, key := range []string{"Count", "count", "Total", "total"} {
		if val, ok := data[key]; ok {
			return val
		}
	}
	return nil
}
