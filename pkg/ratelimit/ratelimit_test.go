package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowAllow(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	sw := NewSlidingWindow(2, time.Second)
	sw.now = func() time.Time { return current }

	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow(), "窗口内超过限额应拒绝")
	assert.Equal(t, 0, sw.GetRemaining())

	current = current.Add(1100 * time.Millisecond)
	assert.Equal(t, 2, sw.GetRemaining())
	assert.True(t, sw.Allow())
}

func TestSlidingWindowWaitCancelled(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sw.Wait(ctx), context.DeadlineExceeded)
}

func TestManagerRules(t *testing.T) {
	m := NewRateLimitManager(0, 0, Rule{Key: "POST /interactive/orders", Limit: 1, Window: time.Hour})

	assert.True(t, m.Allow("post /interactive/orders/"))
	assert.False(t, m.Allow("POST /interactive/orders?clientID=X"), "规则 key 应忽略大小写、查询串和末尾斜杠")

	assert.True(t, m.Allow("GET /interactive/orders"), "无规则且无通用限额时不限流")
	assert.Equal(t, -1, m.GetRemaining("GET /interactive/orders"))
	require.NoError(t, m.Wait(context.Background(), "GET /interactive/orders"))
}

func TestManagerGeneralLimit(t *testing.T) {
	m := NewRateLimitManager(1, time.Hour)
	assert.True(t, m.Allow("GET /interactive/user/profile"))
	assert.False(t, m.Allow("GET /interactive/user/balance"), "通用限流器在所有未配置的 key 之间共享")
}

func TestDefaultRules(t *testing.T) {
	m := NewRateLimitManager(0, 0, DefaultRules()...)
	assert.Equal(t, 10, m.GetRemaining("POST /interactive/orders"))
	assert.Equal(t, 1, m.GetRemaining("POST /interactive/user/session"))
}
