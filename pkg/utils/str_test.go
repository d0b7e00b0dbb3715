package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", FirstNonEmpty("a", "b"))
	assert.Equal(t, "b", FirstNonEmpty("", "b"))
	assert.Equal(t, "c", FirstNonEmpty("", "", "c"))
	assert.Equal(t, "", FirstNonEmpty("", ""))
	assert.Equal(t, "", FirstNonEmpty())
}

func TestSplitByMultipleDelimiters(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitByMultipleDelimiters("a,b;c", ",", ";"))
	assert.Equal(t, []string{"a", "b=c"}, SplitByMultipleDelimiters("a,b=c", ",", ";"))
	assert.Equal(t, []string{"a"}, SplitByMultipleDelimiters("a", ",", ";"))
	assert.Equal(t, []string{"a,b"}, SplitByMultipleDelimiters("a,b"))
	assert.Equal(t, []string{"h1:6379", "h2:6379"}, SplitByMultipleDelimiters(" h1:6379 ;, h2:6379 ", ",", ";"))
	assert.Empty(t, SplitByMultipleDelimiters("", ","))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "Yük", Truncate("Yükleniyor...", 3))
	assert.Equal(t, "", Truncate("abc", 0))
}
