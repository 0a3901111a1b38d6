package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGetSetDelete(t *testing.T) {
	c := NewContext()

	assert.Nil(t, c.Get("missing"))

	c.Set("count", 3)
	c.Set("mode", "fast")
	assert.Equal(t, 3, c.Get("count"))
	assert.Equal(t, "fast", c.Get("mode"))
	assert.Equal(t, 2, c.Len())

	assert.True(t, c.Delete("count"))
	assert.False(t, c.Delete("count"))
	assert.Nil(t, c.Get("count"))
	assert.Equal(t, 1, c.Len())
}

func TestContextKeysSorted(t *testing.T) {
	c := NewContext()
	c.Set("zeta", 1)
	c.Set("alpha", 2)
	c.Set("mid", 3)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, c.Keys())
}

func TestContextSnapshotIsolated(t *testing.T) {
	c := NewContext()
	c.Set("pin", true)

	snap := c.Snapshot()
	snap["pin"] = false
	snap["extra"] = 1

	assert.Equal(t, true, c.Get("pin"))
	assert.Nil(t, c.Get("extra"))
}

func TestContextEncodedSize(t *testing.T) {
	c := NewContext()
	assert.Equal(t, len("{}"), c.EncodedSize())

	c.Set("a", 1)
	small := c.EncodedSize()
	c.Set("banner", "a much longer value than before")
	assert.Greater(t, c.EncodedSize(), small)
}
