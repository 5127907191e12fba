package sink

import (
	"context"

	"github.com/qiminjie89/danmuji/pkg/logger"
	"go.uber.org/zap"
)

// LogReplies 只记录回复，未配置 Kafka 时使用
type LogReplies struct{}

// Send 实现 plugin.ReplySink
func (LogReplies) Send(_ context.Context, roomID int64, text string) error {
	logger.Info("reply",
		zap.Int64("room_id", roomID),
		zap.String("text", text),
	)
	return nil
}
