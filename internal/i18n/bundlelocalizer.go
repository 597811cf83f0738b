package i18n

import (
	"embed"
	"fmt"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// DefaultLanguage is used when no language is requested.
var DefaultLanguage = language.English

// BundleLocalizer implements Localizer over an embedded go-i18n bundle,
// following core/infrastructure/i18n/bundlelocalizer.go.
type BundleLocalizer struct {
	currentLang string
	localizer   *goi18n.Localizer
	bundle      *goi18n.Bundle
}

// New creates a localizer for lang ("en", "de", ...), falling back to
// DefaultLanguage when lang is empty.
func New(lang string) (Localizer, error) {
	bundle := goi18n.NewBundle(DefaultLanguage)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	entries, err := localesFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localesFS, "locales/"+e.Name()); err != nil {
			return nil, fmt.Errorf("i18n: load %s: %w", e.Name(), err)
		}
	}

	if lang == "" {
		lang = DefaultLanguage.String()
	}
	return &BundleLocalizer{
		currentLang: lang,
		localizer:   goi18n.NewLocalizer(bundle, lang),
		bundle:      bundle,
	}, nil
}

// Translate looks up messageID and interpolates the first template map, if any.
func (l *BundleLocalizer) Translate(messageID string, templateData ...map[string]interface{}) string {
	var data interface{}
	if len(templateData) > 0 {
		data = templateData[0]
	}
	msg, err := l.localizer.Localize(&goi18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err != nil {
		return fmt.Sprintf("translation for %q not found", messageID)
	}
	return msg
}

// GetCurrentLanguage returns the active language tag.
func (l *BundleLocalizer) GetCurrentLanguage() string { return l.currentLang }

// SetLanguage switches the active language.
func (l *BundleLocalizer) SetLanguage(lang string) error {
	l.currentLang = lang
	l.localizer = goi18n.NewLocalizer(l.bundle, lang)
	return nil
}
