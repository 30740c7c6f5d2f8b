package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, NewMetricsService(), 0, nil, true)
	ctx := context.Background()

	var dest map[string]int
	assert.False(t, svc.Get(ctx, "k", &dest))

	svc.Set(ctx, "k", map[string]int{"a": 1}, 0)
	assert.True(t, svc.Get(ctx, "k", &dest))
	assert.Equal(t, 1, dest["a"])

	svc.Invalidate(ctx, "k*")
	assert.False(t, svc.Get(ctx, "k", &dest))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	svc.Set(context.Background(), "k", 1, 0)
	assert.Empty(t, repo.data)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	nilSvc.Invalidate(context.Background(), "*")
}
