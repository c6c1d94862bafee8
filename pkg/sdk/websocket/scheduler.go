package websocket

import (
	"sync"
	"time"
)

// Job 周期任务句柄
type Job interface {
	Stop()
}

// Scheduler 周期任务调度器；fn 不会在 Every 内同步执行
type Scheduler interface {
	Every(d time.Duration, fn func()) Job
}

// TickerScheduler 基于 time.Ticker 的调度器
type TickerScheduler struct{}

type tickerJob struct {
	done chan struct{}
	once sync.Once
}

func (j *tickerJob) Stop() {
	j.once.Do(func() { close(j.done) })
}

// Every 每隔 d 在独立 goroutine 中调用一次 fn，直到 Stop
func (TickerScheduler) Every(d time.Duration, fn func()) Job {
	j := &tickerJob{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case <-j.done:
					return
				default:
				}
				fn()
			case <-j.done:
				return
			}
		}
	}()
	return j
}
