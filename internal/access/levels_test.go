package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOrdering(t *testing.T) {
	ordered := []Level{LevelNone, LevelBasic, LevelMedical, LevelFinancial, LevelFull}

	for i, held := range ordered {
		for j, required := range ordered {
			assert.Equal(t, i >= j, held.Covers(required),
				"covers(%s, %s)", held, required)
		}
	}
}

func TestCoversReflexiveAndTransitive(t *testing.T) {
	levels := []Level{LevelNone, LevelBasic, LevelMedical, LevelFinancial, LevelFull}

	for _, a := range levels {
		assert.True(t, a.Covers(a), "covers must be reflexive for %s", a)
	}

	for _, a := range levels {
		for _, b := range levels {
			for _, c := range levels {
				if a.Covers(b) && b.Covers(c) {
					assert.True(t, a.Covers(c),
						"covers(%s,%s) and covers(%s,%s) but not covers(%s,%s)", a, b, b, c, a, c)
				}
			}
		}
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("financial")
	require.NoError(t, err)
	assert.Equal(t, LevelFinancial, level)

	_, err = ParseLevel("superuser")
	require.Error(t, err)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("case_manager")
	require.NoError(t, err)
	assert.Equal(t, RoleCaseManager, role)

	_, err = ParseRole("janitor")
	require.Error(t, err)
}
