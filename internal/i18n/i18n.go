// Package i18n localizes practice feedback, alert labels and state labels.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var localeFiles = []string{"locales/en.json", "locales/fr.json"}

// Catalog holds the loaded message bundle.
type Catalog struct {
	bundle  *goi18n.Bundle
	matcher language.Matcher
	tags    []language.Tag
}

// NewCatalog loads the embedded message files. English is the fallback.
func NewCatalog() (*Catalog, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, path := range localeFiles {
		if _, err := bundle.LoadMessageFileFS(localeFS, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	tags := bundle.LanguageTags()
	return &Catalog{
		bundle:  bundle,
		matcher: language.NewMatcher(tags),
		tags:    tags,
	}, nil
}

// Localizer renders messages in one language.
type Localizer struct {
	tag       language.Tag
	localizer *goi18n.Localizer
}

// For returns a localizer for the closest supported match to langTag.
// Unknown or malformed tags fall back to English.
func (c *Catalog) For(langTag string) *Localizer {
	tag := language.English
	if parsed, err := language.Parse(langTag); err == nil {
		_, idx, conf := c.matcher.Match(parsed)
		if conf != language.No {
			tag = c.tags[idx]
		}
	}
	return &Localizer{
		tag:       tag,
		localizer: goi18n.NewLocalizer(c.bundle, tag.String()),
	}
}

// Tag returns the matched language.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// T renders messageID with optional template data. Missing messages render
// as their id.
func (l *Localizer) T(messageID string, data map[string]any) string {
	text, err := l.localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return text
}

// Tier renders the feedback sentence for a score tier.
func (l *Localizer) Tier(tier string) string {
	return l.T("tier_"+tier, nil)
}

// Alert renders the label for an alert name such as "too_fast".
func (l *Localizer) Alert(name string) string {
	return l.T("alert_"+name, nil)
}

// State renders the label for a session state such as "recording".
func (l *Localizer) State(name string) string {
	return l.T("state_"+name, nil)
}
