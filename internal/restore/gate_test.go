package restore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate(t *testing.T) {
	g := NewGate(nil, nil)
	ctx := context.Background()

	assert.False(t, g.Enabled())

	g.Enable(ctx)
	assert.True(t, g.Enabled())

	g.Disable(ctx)
	assert.False(t, g.Enabled())

	// Disable is safe to call repeatedly.
	g.Disable(ctx)
	assert.False(t, g.Enabled())
}
