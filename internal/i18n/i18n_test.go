package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChadR23/sentry-six/internal/models"
)

func TestLoad(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)

	langs := b.Languages()
	require.NotEmpty(t, langs)
	assert.Equal(t, "en", langs[0], "english is the default")
	assert.Contains(t, langs, "de")
	assert.Contains(t, langs, "es")
	assert.Contains(t, langs, "fr")
}

func TestLocale(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)

	t.Run("exact match", func(t *testing.T) {
		l := b.Locale("de")
		assert.Equal(t, "FAHREN", l.Gear(models.GearDrive))
	})

	t.Run("region narrows to base language", func(t *testing.T) {
		l := b.Locale("es-MX")
		assert.Equal(t, "REVERSA", l.Gear(models.GearReverse))
	})

	t.Run("unknown language falls back to english", func(t *testing.T) {
		l := b.Locale("zz")
		assert.Equal(t, "PARK", l.Gear(models.GearPark))
	})

	t.Run("missing key falls back to english then key", func(t *testing.T) {
		l := b.Locale("fr")
		assert.Equal(t, "AUTOPILOTE", l.Autopilot(models.AutopilotAutosteer))
		assert.Equal(t, "no.such.key", l.T("no.such.key"))
	})

	t.Run("speed units", func(t *testing.T) {
		l := b.Locale("en")
		assert.Equal(t, "MPH", l.SpeedUnit(false))
		assert.Equal(t, "km/h", l.SpeedUnit(true))
	})

	t.Run("every language covers progress keys", func(t *testing.T) {
		for _, lang := range b.Languages() {
			l := b.Locale(lang)
			for _, key := range []string{"progress.rendering", "progress.complete", "error.empty_selection"} {
				assert.NotEqual(t, key, l.T(key), "lang %s key %s", lang, key)
			}
		}
	})
}
