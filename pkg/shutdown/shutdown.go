package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"

	"github.com/betbot/xtsgo/pkg/logger"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type callback struct {
	name    string
	handler Handler
}

// Manager 优雅关闭管理器
type Manager struct {
	callbacks []callback
	mu        sync.Mutex
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback{name: name, handler: handler})
}

// Shutdown 并发执行所有关闭回调并等待完成或 ctx 超时。
// 返回第一个回调错误；超时返回 ctx 的错误。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	callbacks := append([]callback(nil), m.callbacks...)
	m.mu.Unlock()

	if len(callbacks) == 0 {
		logger.Info("没有注册的关闭回调")
		return nil
	}

	logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(cb callback) {
			defer wg.Done()
			if err := cb.handler(ctx); err != nil {
				logger.Errorf("关闭回调 %s 失败: %v", cb.name, err)
				errMu.Lock()
				if firstErr == nil {
					firstErr = errors.Wrap(err, cb.name)
				}
				errMu.Unlock()
			}
		}(cb)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("所有关闭回调已完成")
		errMu.Lock()
		defer errMu.Unlock()
		return firstErr
	case <-ctx.Done():
		logger.Warnf("关闭超时: %v", ctx.Err())
		return ctx.Err()
	}
}

// WaitForSignal 阻塞直到收到 SIGINT/SIGTERM 或 ctx 结束
func WaitForSignal(ctx context.Context) os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		logger.Infof("收到信号 %s", sig)
		return sig
	case <-ctx.Done():
		return nil
	}
}
