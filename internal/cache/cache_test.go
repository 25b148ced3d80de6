package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/provider"
)

type countingGen struct {
	calls int
	err   error
}

func (g *countingGen) Generate(_ context.Context, req provider.Request) (provider.Output, error) {
	g.calls++
	if g.err != nil {
		return provider.Output{}, g.err
	}
	return provider.Output{Kind: provider.KindText, Text: "out:" + req.Prompt}, nil
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func textRequest(prompt string) provider.Request {
	return provider.Request{Model: aimodel.DraftingModel(), Prompt: prompt, Params: map[string]any{"temperature": 0.7}}
}

func TestCacheHit(t *testing.T) {
	mr, client := setupRedis(t)
	gen := &countingGen{}
	c := New(gen, client, time.Hour)

	first, err := c.Generate(context.Background(), textRequest("hello"))
	require.NoError(t, err)
	second, err := c.Generate(context.Background(), textRequest("hello"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.calls)

	key, _ := Key(textRequest("hello"))
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestCacheKeyDependsOnParams(t *testing.T) {
	a, err := Key(textRequest("hello"))
	require.NoError(t, err)

	req := textRequest("hello")
	req.Params["temperature"] = 0.2
	b, err := Key(req)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	c, _ := Key(textRequest("hello"))
	assert.Equal(t, a, c)
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	_, client := setupRedis(t)
	gen := &countingGen{err: errors.New("boom")}
	c := New(gen, client, time.Hour)

	_, err := c.Generate(context.Background(), textRequest("x"))
	require.Error(t, err)
	_, err = c.Generate(context.Background(), textRequest("x"))
	require.Error(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestCacheBypassesOnRedisFailure(t *testing.T) {
	mr, client := setupRedis(t)
	gen := &countingGen{}
	c := New(gen, client, time.Hour)
	mr.Close()

	out, err := c.Generate(context.Background(), textRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "out:x", out.Text)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
