package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestI18n_TL(t *testing.T) {
	i := NewI18n()

	assert.Equal(t, "電卓", i.TL(LocaleJA, "page_title"))
	assert.Equal(t, "Calculator", i.TL(LocaleEN, "page_title"))
	assert.Equal(t, "Session not found: s1", i.TL(LocaleEN, "session_not_found", "s1"))
}

func TestI18n_Fallback(t *testing.T) {
	i := NewI18n()
	require.NoError(t, i.LoadMessagesFromJSON(LocaleEN, []byte(`{"only_en": "English only"}`)))

	assert.Equal(t, "English only", i.TL(LocaleJA, "only_en"))
	assert.Equal(t, "missing_key", i.TL(LocaleJA, "missing_key"))
	assert.Equal(t, "missing_key: [1]", i.TL(LocaleJA, "missing_key", 1))
}

func TestI18n_LoadMessagesFromJSON(t *testing.T) {
	i := NewI18n()

	require.NoError(t, i.LoadMessagesFromJSON(LocaleJA, []byte(`{"page_title": "計算機"}`)))
	assert.Equal(t, "計算機", i.TL(LocaleJA, "page_title"))
	// 既存のキーは残る
	assert.Equal(t, "AC", i.TL(LocaleJA, "button_clear"))

	assert.Error(t, i.LoadMessagesFromJSON(LocaleJA, []byte(`{broken`)))
}

func TestI18n_LoadCatalogJSON(t *testing.T) {
	i := NewI18n()

	require.NoError(t, i.LoadCatalogJSON([]byte(`{
  "ja": {"page_title": "でんたく"},
  "en": {"page_title": "Pocket calculator"}
}`)))
	assert.Equal(t, "でんたく", i.TL(LocaleJA, "page_title"))
	assert.Equal(t, "Pocket calculator", i.TL(LocaleEN, "page_title"))

	assert.Error(t, i.LoadCatalogJSON([]byte(`{"fr": {"page_title": "Calculatrice"}}`)))
	assert.Error(t, i.LoadCatalogJSON([]byte(`["ja"]`)))
}

func TestI18n_SetLocale(t *testing.T) {
	i := NewI18n()
	i.SetLocale(LocaleEN)
	assert.Equal(t, LocaleEN, i.GetLocale())
	assert.Equal(t, "Error", i.T("error"))

	i.SetLocale(LocaleJA)
	assert.Equal(t, "エラー", i.T("error"))
}

func TestParseLocale(t *testing.T) {
	tests := []struct {
		input string
		want  Locale
		ok    bool
	}{
		{input: "ja", want: LocaleJA, ok: true},
		{input: " EN ", want: LocaleEN, ok: true},
		{input: "fr", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLocale(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestI18n_ValidateLocale(t *testing.T) {
	i := NewI18n()
	assert.True(t, i.ValidateLocale(LocaleJA))
	assert.False(t, i.ValidateLocale(Locale("fr")))
}
