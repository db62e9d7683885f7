package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproximate(t *testing.T) {
	assert.Equal(t, 0, Approximate(""))
	assert.Equal(t, 0, Approximate("abc"))
	assert.Equal(t, 1, Approximate("abcd"))
	assert.Equal(t, 2, Approximate("abcdefghij"))
	// byte length, not rune count
	assert.Equal(t, 3, Approximate("こんにちは"))
}

func TestCounter_UnknownEncodingFallsBack(t *testing.T) {
	c := New("no-such-encoding", nil)

	assert.False(t, c.Exact())
	assert.Equal(t, Approximate("hello there, general"), c.Count("hello there, general"))
}

func TestCounter_NilApproximates(t *testing.T) {
	var c *Counter
	assert.Equal(t, 25, c.Count(strings.Repeat("a", 100)))
}

func TestCounter_DefaultEncoding(t *testing.T) {
	c := New(DefaultEncoding, nil)

	assert.True(t, c.Exact())
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 2, c.Count("hello world"))
}
