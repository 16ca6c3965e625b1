// Package i18n provides translated labels for overlay rendering and
// user-facing progress messages. Translations are embedded YAML tables;
// a missing key or language falls back to English.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/ChadR23/sentry-six/internal/models"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// table is one flattened language table: "gear.P" -> "PARK".
type table map[string]string

// Bundle holds every embedded language and resolves lookups through a
// language matcher.
type Bundle struct {
	tables  map[string]table
	matcher language.Matcher
	tags    []language.Tag
}

// Load parses the embedded locale tables. English is required; other
// languages are optional.
func Load() (*Bundle, error) {
	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, err
	}

	b := &Bundle{tables: make(map[string]table)}
	for _, e := range entries {
		code := strings.TrimSuffix(e.Name(), ".yaml")
		data, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, err
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing locale %s: %w", code, err)
		}

		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("locale %s: %w", code, err)
		}

		t := make(table)
		flatten("", raw, t)
		b.tables[tag.String()] = t
		b.tags = append(b.tags, tag)
	}

	if _, ok := b.tables["en"]; !ok {
		return nil, fmt.Errorf("english locale missing")
	}

	// English first so it wins as the matcher default.
	ordered := []language.Tag{language.English}
	for _, t := range b.tags {
		if t != language.English {
			ordered = append(ordered, t)
		}
	}
	b.tags = ordered
	b.matcher = language.NewMatcher(ordered)
	return b, nil
}

// flatten turns nested YAML maps into dot-joined keys.
func flatten(prefix string, raw map[string]any, out table) {
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Languages lists the available language codes, English first.
func (b *Bundle) Languages() []string {
	out := make([]string, len(b.tags))
	for i, t := range b.tags {
		out[i] = t.String()
	}
	return out
}

// Locale resolves a requested language ("de", "es-MX", "pt") to the
// closest available table. Unmatched requests resolve to English.
func (b *Bundle) Locale(lang string) *Locale {
	tag, _ := language.MatchStrings(b.matcher, lang)
	base, _ := tag.Base()

	t, ok := b.tables[tag.String()]
	if !ok {
		t, ok = b.tables[base.String()]
	}
	if !ok {
		t = b.tables["en"]
	}
	return &Locale{table: t, fallback: b.tables["en"]}
}

// Locale is one resolved language with English fallback.
type Locale struct {
	table    table
	fallback table
}

// T returns the translation for key, falling back to English and then
// to the key itself.
func (l *Locale) T(key string) string {
	if v, ok := l.table[key]; ok {
		return v
	}
	if v, ok := l.fallback[key]; ok {
		return v
	}
	return key
}

// Gear returns the display label for a gear state.
func (l *Locale) Gear(g models.Gear) string {
	return l.T("gear." + string(g))
}

// Autopilot returns the display label for an automation state.
func (l *Locale) Autopilot(a models.AutopilotState) string {
	return l.T("autopilot." + string(a))
}

// SpeedUnit returns the label for the configured speed unit.
func (l *Locale) SpeedUnit(metric bool) string {
	if metric {
		return l.T("units.kmh")
	}
	return l.T("units.mph")
}
