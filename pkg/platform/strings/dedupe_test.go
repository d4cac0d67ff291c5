package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	assert.Equal(t, []string{"name", "diagnosis"},
		DedupeAndTrim([]string{" name ", "diagnosis", "name", "", "  "}))

	assert.Empty(t, DedupeAndTrim(nil))
	assert.Empty(t, DedupeAndTrim([]string{"", "   "}))
}
