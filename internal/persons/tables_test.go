package persons

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	tb, err := DefaultTables()
	require.NoError(t, err)
	assert.Equal(t, 551, tb.Resolve(373))
	assert.Equal(t, 1, tb.Resolve(0))
	assert.Equal(t, 42, tb.Resolve(42))
	assert.True(t, tb.IsCanonical(939))
	assert.True(t, tb.Removed[549])
	assert.True(t, tb.PhoneBogus["1234"])
	assert.Equal(t, 305, tb.MentorException)
	a, ok := tb.Actor(134)
	assert.True(t, ok)
	assert.Equal(t, 37, a)
}

func TestParseTablesRejects(t *testing.T) {
	for name, y := range map[string]string{
		"self":  "dupes:\n  - {dupe: 5, canonical: 5}\n",
		"chain": "dupes:\n  - {dupe: 5, canonical: 6}\n  - {dupe: 6, canonical: 7}\n",
		"twice": "dupes:\n  - {dupe: 5, canonical: 6}\n  - {dupe: 5, canonical: 7}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTables([]byte(y))
			assert.ErrorIs(t, err, ErrInvariant)
		})
	}
}

func TestPruneKeepsOriginal(t *testing.T) {
	tb, err := ParseTables([]byte(`
dupes:
  - {dupe: 373, canonical: 551}
  - {dupe: 0, canonical: 1}
company_actor:
  - {entity: 134, actor: 37}
`))
	require.NoError(t, err)
	p := tb.Prune(map[int]bool{373: true, 551: true, 134: true})
	assert.Equal(t, map[int]int{373: 551}, p.Dupes)
	assert.Empty(t, p.CompanyActor)
	assert.Len(t, tb.Dupes, 2)
	assert.Len(t, tb.CompanyActor, 1)
}

func TestResolveIsIdempotent(t *testing.T) {
	tb, err := DefaultTables()
	require.NoError(t, err)
	properties := gopter.NewProperties(nil)
	properties.Property("resolve lands on a canonical id", prop.ForAll(
		func(id int) bool {
			r := tb.Resolve(id)
			_, dupe := tb.Dupes[r]
			return tb.Resolve(r) == r && !dupe
		},
		gen.IntRange(0, 1200),
	))
	properties.TestingRun(t)
}
