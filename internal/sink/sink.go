// Package sink 把事件和插件回复转发到外部系统（Kafka、NATS、日志）
package sink

import (
	"context"

	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"github.com/qiminjie89/danmuji/pkg/metrics"
	"go.uber.org/zap"
)

// consume 订阅总线，逐个事件调用 fn，直到 ctx 取消或总线关闭
//
// fn 出错只记录，不中断消费。
func consume(ctx context.Context, b *bus.Bus, name string, fn func(context.Context, event.Event) error) error {
	sub := b.Subscribe(name)
	defer sub.Close()

	logger.Info("sink started", zap.String("sink", name))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := fn(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				metrics.SinkFailures.WithLabelValues(name).Inc()
				logger.Warn("sink write failed",
					zap.String("sink", name),
					zap.Int64("room_id", ev.RoomID),
					zap.Stringer("kind", ev.Kind),
					zap.Error(err),
				)
			}
		}
	}
}
