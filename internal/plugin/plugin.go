// Package plugin 实现自动回复插件管线
//
// Executor 订阅事件总线，按注册顺序把事件交给每个插件，插件产生的回复
// 经过限流后交给 ReplySink。发弹幕本身由外部服务完成。
package plugin

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"github.com/qiminjie89/danmuji/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Plugin 回复插件
type Plugin interface {
	Name() string
	// Process 处理一个事件，返回零或多条回复
	Process(ctx context.Context, ev event.Event) ([]string, error)
}

// ReplySink 回复的去处
type ReplySink interface {
	Send(ctx context.Context, roomID int64, text string) error
}

// Executor 插件执行器
type Executor struct {
	bus     *bus.Bus
	sink    ReplySink
	limiter *rate.Limiter

	mu      sync.RWMutex
	plugins []Plugin
}

// NewExecutor 创建执行器，replyRate <= 0 表示不限流
func NewExecutor(b *bus.Bus, sink ReplySink, replyRate float64, burst int) *Executor {
	limit := rate.Inf
	if replyRate > 0 {
		limit = rate.Limit(replyRate)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Executor{
		bus:     b,
		sink:    sink,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Register 注册插件，同名插件会被替换且保持原有顺序
func (e *Executor) Register(p Plugin) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, old := range e.plugins {
		if old.Name() == p.Name() {
			e.plugins[i] = p
			return
		}
	}
	e.plugins = append(e.plugins, p)
}

// Remove 移除插件
func (e *Executor) Remove(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, p := range e.plugins {
		if p.Name() == name {
			e.plugins = append(e.plugins[:i], e.plugins[i+1:]...)
			return true
		}
	}
	return false
}

// Plugins 已注册插件名
func (e *Executor) Plugins() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, len(e.plugins))
	for i, p := range e.plugins {
		names[i] = p.Name()
	}
	return names
}

// Run 消费总线事件直到 ctx 取消或总线关闭
func (e *Executor) Run(ctx context.Context) error {
	sub := e.bus.Subscribe("plugins")
	defer sub.Close()

	logger.Info("plugin executor started", zap.Strings("plugins", e.Plugins()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			e.Handle(ctx, ev)
		}
	}
}

// Handle 把单个事件交给所有插件
func (e *Executor) Handle(ctx context.Context, ev event.Event) {
	e.mu.RLock()
	plugins := make([]Plugin, len(e.plugins))
	copy(plugins, e.plugins)
	e.mu.RUnlock()

	for _, p := range plugins {
		start := time.Now()
		replies, err := p.Process(ctx, ev)
		metrics.PluginDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("plugin process failed",
					zap.String("plugin", p.Name()),
					zap.Int64("room_id", ev.RoomID),
					zap.Error(err),
				)
			}
			continue
		}

		for _, reply := range replies {
			e.reply(ctx, p.Name(), ev.RoomID, reply)
		}
	}
}

func (e *Executor) reply(ctx context.Context, plugin string, roomID int64, text string) {
	if !e.limiter.Allow() {
		metrics.RepliesDropped.WithLabelValues("rate_limited").Inc()
		logger.Debug("reply rate limited",
			zap.String("plugin", plugin),
			zap.Int64("room_id", roomID),
		)
		return
	}

	if err := e.sink.Send(ctx, roomID, text); err != nil {
		metrics.RepliesDropped.WithLabelValues("sink_error").Inc()
		logger.Warn("send reply failed",
			zap.String("plugin", plugin),
			zap.Int64("room_id", roomID),
			zap.Error(err),
		)
		return
	}
	metrics.RepliesSent.WithLabelValues(plugin).Inc()
}
