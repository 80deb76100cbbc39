package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/thematic/internal/cache"
	"github.com/ppiankov/thematic/internal/worker"
)

type fakeEmbedder struct {
	calls int32
	vec   []float32
	err   error
}

func (f *fakeEmbedder) Name() string  { return "fake" }
func (f *fakeEmbedder) Model() string { return "fake-embed-1" }
func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.vec, f.err
}

func TestEmbed_CachesVectors(t *testing.T) {
	fe := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	svc := NewService(fe, cache.NewMemoryCache(time.Minute, time.Minute), worker.NewLimiter(0, 1), nil)

	first := svc.Embed(context.Background(), "Onboarding is slow", "theme-dedup")
	second := svc.Embed(context.Background(), "  Onboarding is slow ", "theme-dedup")

	assert.Equal(t, []float32{0.1, 0.2}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fe.calls))
	assert.Equal(t, "fake-embed-1", svc.Model())
}

func TestEmbed_FailureReturnsNil(t *testing.T) {
	fe := &fakeEmbedder{err: errors.New("503 from provider")}
	svc := NewService(fe, nil, nil, nil)

	assert.Nil(t, svc.Embed(context.Background(), "text", "evidence-link"))
}

func TestEmbed_EmptyVectorIsFailure(t *testing.T) {
	fe := &fakeEmbedder{vec: []float32{}}
	svc := NewService(fe, cache.NewMemoryCache(time.Minute, time.Minute), nil, nil)

	assert.Nil(t, svc.Embed(context.Background(), "text", "x"))
	assert.Nil(t, svc.Embed(context.Background(), "text", "x"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fe.calls), "failures are not cached")
}

func TestEmbed_BlankTextSkipsProvider(t *testing.T) {
	fe := &fakeEmbedder{vec: []float32{1}}
	svc := NewService(fe, nil, nil, nil)

	assert.Nil(t, svc.Embed(context.Background(), "   ", "x"))
	assert.Zero(t, atomic.LoadInt32(&fe.calls))
}

func TestEmbed_CanceledLimiterWait(t *testing.T) {
	fe := &fakeEmbedder{vec: []float32{1}}
	limiter := worker.NewLimiter(0.001, 1)
	require.True(t, limiter.Allow("fake"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(fe, nil, limiter, nil)
	assert.Nil(t, svc.Embed(ctx, "text", "x"))
	assert.Zero(t, atomic.LoadInt32(&fe.calls))
}
