package objmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yamlv2 "gopkg.in/yaml.v2"
)

// legacyJumpTableFixture mirrors the jump table dump schema recorded
// before compile addresses were split into base/patch pairs: a fixture
// written by that release records symbol name and address as
// top-level scalars rather than the current entry shape. These
// recordings still round-trip through yaml.v2, kept live specifically
// so old fixtures don't need re-recording whenever the current dump
// schema (pkg/transport/dump.go, yaml.v3) changes.
type legacyJumpTableFixture struct {
	AnchorSymbol string                  `yaml:"anchor_symbol"`
	AnchorAddr   uint64                  `yaml:"anchor_addr"`
	Entries      []legacyJumpTableSymbol `yaml:"entries"`
}

type legacyJumpTableSymbol struct {
	Symbol  string `yaml:"symbol"`
	Address uint64 `yaml:"address"`
}

const legacyJumpTableYAML = `
anchor_symbol: _start
anchor_addr: 4096
entries:
  - symbol: handle_request
    address: 4368
  - symbol: render_template
    address: 4512
`

func TestLegacyJumpTableFixture_DecodesWithYAMLv2(t *testing.T) {
	var fixture legacyJumpTableFixture
	require.NoError(t, yamlv2.Unmarshal([]byte(legacyJumpTableYAML), &fixture))

	assert.Equal(t, "_start", fixture.AnchorSymbol)
	assert.Equal(t, uint64(4096), fixture.AnchorAddr)
	require.Len(t, fixture.Entries, 2)
	assert.Equal(t, "handle_request", fixture.Entries[0].Symbol)
	assert.Equal(t, uint64(4368), fixture.Entries[0].Address)
	assert.Equal(t, "render_template", fixture.Entries[1].Symbol)
	assert.Equal(t, uint64(4512), fixture.Entries[1].Address)
}

// TestLegacyJumpTableFixture_MatchesArtifactLookup checks that an
// artifact built with today's symbol model still resolves the same
// addresses the legacy fixture recorded for the same binary, i.e. the
// compile-address arithmetic behind CompileAddress hasn't drifted from
// what was shipped when these fixtures were captured.
func TestLegacyJumpTableFixture_MatchesArtifactLookup(t *testing.T) {
	var fixture legacyJumpTableFixture
	require.NoError(t, yamlv2.Unmarshal([]byte(legacyJumpTableYAML), &fixture))

	text := &Section{Name: "text", Kind: SectionCode, Addr: 4096}
	start := &Symbol{Name: "_start", Section: text, Address: 0}
	handleRequest := &Symbol{Name: "handle_request", Section: text, Address: 272}
	renderTemplate := &Symbol{Name: "render_template", Section: text, Address: 416}
	text.Symbols = []*Symbol{start, handleRequest, renderTemplate}

	artifact := &Artifact{
		Format:   FormatELF,
		Sections: []*Section{text},
		Symbols: map[string]*Symbol{
			"_start":          start,
			"handle_request":  handleRequest,
			"render_template": renderTemplate,
		},
		AllSymbols: text.Symbols,
	}

	require.NotNil(t, artifact.Lookup(fixture.AnchorSymbol))
	assert.Equal(t, fixture.AnchorAddr, artifact.Lookup(fixture.AnchorSymbol).CompileAddress())
	for _, entry := range fixture.Entries {
		sym := artifact.Lookup(entry.Symbol)
		require.NotNilf(t, sym, "fixture references %q, not present in current symbol model", entry.Symbol)
		assert.Equal(t, entry.Address, sym.CompileAddress())
	}
}
