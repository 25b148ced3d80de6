package marketing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimize(t *testing.T) {
	fg := &fakeGen{}
	o := NewOptimizer(fg)

	out, err := o.Optimize(context.Background(), "Buy now", Twitter, map[string]float64{"ctr": 0.01})
	require.NoError(t, err)
	assert.Contains(t, out, "Original Content: Buy now")

	req := fg.calls()[0]
	assert.Equal(t, "gpt-4", req.Model.ModelID)
	assert.Contains(t, req.Params["systemPrompt"], "content optimization expert for twitter")
}
