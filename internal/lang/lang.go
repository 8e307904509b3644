package lang

import (
	"embed"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	mu        sync.RWMutex
	localizer *i18n.Localizer
)

func init() {
	if err := SetupLang("en"); err != nil {
		panic(err)
	}
}

// SetupLang loads the embedded catalogues and selects lang, falling back to English for missing keys.
func SetupLang(lang string) error {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := b.LoadMessageFileFS(localeFS, "locales/"+entry.Name()); err != nil {
			return err
		}
	}

	if !hasCatalogue(b.LanguageTags(), lang) {
		logutils.Log.WithField("lang", lang).Warn("No catalogue for language, falling back to English")
	}

	mu.Lock()
	localizer = i18n.NewLocalizer(b, lang, language.English.String())
	mu.Unlock()
	return nil
}

// hasCatalogue reports whether lang names the base language of one of tags.
func hasCatalogue(tags []language.Tag, lang string) bool {
	want, err := language.Parse(lang)
	if err != nil {
		return false
	}
	wantBase, _ := want.Base()
	for _, tag := range tags {
		if base, _ := tag.Base(); base == wantBase {
			return true
		}
	}
	return false
}

// Translate renders the message key with optional template data. Unknown keys render as the key itself.
func Translate(key string, data map[string]any) string {
	mu.RLock()
	l := localizer
	mu.RUnlock()

	msg, err := l.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		logutils.Log.WithError(err).WithField("key", key).Warn("Translation not found")
		return key
	}
	return msg
}
