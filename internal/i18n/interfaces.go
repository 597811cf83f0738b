// Package i18n translates the handful of user-facing strings the
// orchestrator and CLI print (progress summaries, error prefixes), following
// the teacher's core/infrastructure/i18n bundle-localizer design.
package i18n

// Localizer translates a message ID, optionally interpolating template
// data, into the currently configured language.
type Localizer interface {
	Translate(messageID string, templateData ...map[string]interface{}) string
	GetCurrentLanguage() string
	SetLanguage(lang string) error
}
