package templates_test

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/deck"
	"lectern/internal/templates"
)

func TestResolveKnownAndUnknown(t *testing.T) {
	tpl, ok := templates.Resolve("bold-dark")
	require.True(t, ok)
	assert.Equal(t, "Bold Dark", tpl.Name)

	tpl, ok = templates.Resolve("does-not-exist")
	assert.False(t, ok)
	assert.Equal(t, templates.DefaultID(), tpl.ID)
	assert.Equal(t, "modern-business", tpl.ID)

	tpl, ok = templates.Resolve("")
	assert.False(t, ok)
	assert.Equal(t, "modern-business", tpl.ID)
}

func TestEveryTemplateDefinesFourArchetypes(t *testing.T) {
	ids := templates.IDs()
	require.NotEmpty(t, ids)
	for _, id := range ids {
		tpl, ok := templates.Resolve(id)
		require.True(t, ok, id)
		for _, a := range []templates.Archetype{templates.ArchetypeTitle, templates.ArchetypeContent, templates.ArchetypeSectionBreak, templates.ArchetypeConclusion} {
			_, defined := tpl.Layouts[a]
			assert.True(t, defined, "%s missing %s", id, a)
		}
		for _, token := range []string{tpl.Colors.Primary, tpl.Colors.Secondary, tpl.Colors.Accent, tpl.Colors.Background, tpl.Colors.Text} {
			_, valid := templates.ParseHex(token)
			assert.True(t, valid, "%s color %q", id, token)
		}
	}
}

func TestArchetypeFor(t *testing.T) {
	assert.Equal(t, templates.ArchetypeTitle, templates.ArchetypeFor(deck.TypeTitle))
	assert.Equal(t, templates.ArchetypeContent, templates.ArchetypeFor(deck.TypeStats))
	assert.Equal(t, templates.ArchetypeContent, templates.ArchetypeFor(deck.SlideType("bogus")))
	assert.Equal(t, templates.ArchetypeConclusion, templates.ArchetypeFor(deck.TypeConclusion))
}

func TestWithStyleOverrides(t *testing.T) {
	tpl, _ := templates.Resolve("modern-business")
	styled := tpl.WithStyle(&deck.Style{Primary: "#ff0000", Text: "not-a-color", FontScale: 5})
	assert.Equal(t, "#ff0000", styled.Colors.Primary)
	assert.Equal(t, tpl.Colors.Text, styled.Colors.Text)
	assert.InDelta(t, tpl.Typography.TitleSize*2, styled.Typography.TitleSize, 0.001)
	assert.Equal(t, "#1E3A8A", tpl.Colors.Primary, "original untouched")
}

func TestParseHex(t *testing.T) {
	c, ok := templates.ParseHex("#0af")
	require.True(t, ok)
	assert.Equal(t, color.RGBA{R: 0x00, G: 0xaa, B: 0xff, A: 0xff}, c)
	_, ok = templates.ParseHex("#12345")
	assert.False(t, ok)
	assert.Equal(t, color.RGBA{A: 1}, templates.MustColor("zzz", color.RGBA{A: 1}))
}
