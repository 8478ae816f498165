package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	assert.False(t, Valid(Invalid))
	assert.False(t, Valid(NumPhases))
	assert.False(t, Valid(Phase(-7)))
	for _, p := range All() {
		assert.True(t, Valid(p), "phase %d", int(p))
	}
}

func TestIsRootWork(t *testing.T) {
	roots := map[Phase]bool{
		ScanRoots:                 true,
		UpdateRoots:               true,
		InitEvac:                  true,
		FinalUpdateRefsRoots:      true,
		DegenGCUpdateRoots:        true,
		InitTraversalGCWork:       true,
		FinalTraversalGCWork:      true,
		FinalTraversalUpdateRoots: true,
		FullGCRoots:               true,
	}

	for _, p := range All() {
		assert.Equal(t, roots[p], IsRootWork(p), "IsRootWork(%s)", p.Key())
	}
	assert.False(t, IsRootWork(Invalid))
	assert.False(t, IsRootWork(ConcMark))
	assert.False(t, IsRootWork(FullGCMark))
}

func TestKeysAreUniqueAndParse(t *testing.T) {
	seen := make(map[string]Phase)
	for _, p := range All() {
		key := p.Key()
		require.NotEmpty(t, key, "phase %d has no key", int(p))
		if prev, dup := seen[key]; dup {
			t.Fatalf("key %q used by %d and %d", key, int(prev), int(p))
		}
		seen[key] = p

		parsed, err := Parse(key)
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := Parse("no_such_phase")
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "  Scan Roots", ScanRoots.String())
	assert.Equal(t, "Concurrent Marking", ConcMark.String())
	assert.Equal(t, "Phase(-1)", Invalid.String())
	assert.Equal(t, "invalid", Invalid.Key())
}
