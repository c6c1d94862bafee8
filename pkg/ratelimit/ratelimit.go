package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// RateLimiter 速率限制器接口
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	GetRemaining() int
}

// SlidingWindow 滑动窗口速率限制器
type SlidingWindow struct {
	limit      int           // 窗口内允许的请求数
	windowSize time.Duration // 窗口大小
	requests   []time.Time   // 请求时间戳（按时间递增）
	now        func() time.Time
	mu         sync.Mutex
}

// NewSlidingWindow 创建新的滑动窗口速率限制器
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// prune 移除窗口外的请求，调用方需持有锁
func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = sw.requests[i:]
}

// Allow 检查是否允许请求，允许则记录本次请求
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.prune(now)
	if len(sw.requests) >= sw.limit {
		return false
	}
	sw.requests = append(sw.requests, now)
	return true
}

// Wait 等待直到允许请求
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}

		sw.mu.Lock()
		waitTime := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			if w := sw.requests[0].Add(sw.windowSize).Sub(sw.now()); w > 0 {
				waitTime = w
			}
		}
		sw.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// GetRemaining 获取剩余请求数
func (sw *SlidingWindow) GetRemaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.prune(sw.now())
	return max(0, sw.limit-len(sw.requests))
}

// Rule 某一类请求的限流规则，Key 形如 "POST /interactive/orders"
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

// DefaultRules XTS Interactive 接口的默认限流（下单类 10 次/秒，其余共用通用限额）
func DefaultRules() []Rule {
	return []Rule{
		{Key: "POST /interactive/orders", Limit: 10, Window: time.Second},
		{Key: "PUT /interactive/orders", Limit: 10, Window: time.Second},
		{Key: "DELETE /interactive/orders", Limit: 10, Window: time.Second},
		{Key: "POST /interactive/orders/cover", Limit: 10, Window: time.Second},
		{Key: "PUT /interactive/orders/cover", Limit: 10, Window: time.Second},
		{Key: "POST /interactive/user/session", Limit: 1, Window: time.Second},
	}
}

// RateLimitManager 按请求 key 管理限流器；找不到规则时使用通用限流器
type RateLimitManager struct {
	limiters map[string]RateLimiter
	general  RateLimiter
	mu       sync.RWMutex
}

// NewRateLimitManager 创建速率限制管理器；generalLimit 为 0 时通用请求不限流
func NewRateLimitManager(generalLimit int, window time.Duration, rules ...Rule) *RateLimitManager {
	manager := &RateLimitManager{
		limiters: make(map[string]RateLimiter),
	}
	if generalLimit > 0 && window > 0 {
		manager.general = NewSlidingWindow(generalLimit, window)
	}
	for _, r := range rules {
		manager.Set(r)
	}
	return manager
}

// Set 添加或替换一条规则
func (rlm *RateLimitManager) Set(r Rule) {
	rlm.mu.Lock()
	defer rlm.mu.Unlock()
	rlm.limiters[normalizeKey(r.Key)] = NewSlidingWindow(r.Limit, r.Window)
}

// GetLimiter 获取指定 key 的限流器（可能为 nil，表示不限流）
func (rlm *RateLimitManager) GetLimiter(key string) RateLimiter {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()

	if limiter, exists := rlm.limiters[normalizeKey(key)]; exists {
		return limiter
	}
	return rlm.general
}

// Wait 等待直到允许请求
func (rlm *RateLimitManager) Wait(ctx context.Context, key string) error {
	limiter := rlm.GetLimiter(key)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// Allow 检查是否允许请求
func (rlm *RateLimitManager) Allow(key string) bool {
	limiter := rlm.GetLimiter(key)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

// GetRemaining 获取剩余请求数（不限流时返回 -1）
func (rlm *RateLimitManager) GetRemaining(key string) int {
	limiter := rlm.GetLimiter(key)
	if limiter == nil {
		return -1
	}
	return limiter.GetRemaining()
}

// normalizeKey 方法大写，路径去掉查询串和末尾斜杠
func normalizeKey(key string) string {
	method, path, ok := strings.Cut(strings.TrimSpace(key), " ")
	if !ok {
		return key
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return strings.ToUpper(method) + " " + path
}
