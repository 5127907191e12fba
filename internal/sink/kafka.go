package sink

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/internal/protocol"
	"github.com/qiminjie89/danmuji/pkg/kafka"
	"github.com/qiminjie89/danmuji/pkg/metrics"
)

// KafkaEvents 把事件以 msgpack 归档到 Kafka，按房间号分区
type KafkaEvents struct {
	producer *kafka.Producer
	bus      *bus.Bus
}

// NewKafkaEvents 创建事件归档
func NewKafkaEvents(producer *kafka.Producer, b *bus.Bus) *KafkaEvents {
	return &KafkaEvents{
		producer: producer,
		bus:      b,
	}
}

// Run 消费总线直到 ctx 取消
func (k *KafkaEvents) Run(ctx context.Context) error {
	return consume(ctx, k.bus, "kafka-events", k.write)
}

func (k *KafkaEvents) write(ctx context.Context, ev event.Event) error {
	data, err := protocol.Marshal(protocol.FormatMsgpack, ev.Envelope())
	if err != nil {
		return err
	}
	return k.producer.Send(ctx, roomKey(ev.RoomID), data)
}

// Close 关闭生产者
func (k *KafkaEvents) Close() error {
	return k.producer.Close()
}

// ReplyMessage 投递给外部发送服务的回复
type ReplyMessage struct {
	MsgID     string `json:"msg_id"`
	RoomID    int64  `json:"room_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"` // 毫秒
}

// KafkaReplies 插件回复写入 Kafka，由外部服务消费后发送弹幕
type KafkaReplies struct {
	producer *kafka.Producer
	now      func() time.Time
}

// NewKafkaReplies 创建回复投递
func NewKafkaReplies(producer *kafka.Producer) *KafkaReplies {
	return &KafkaReplies{
		producer: producer,
		now:      time.Now,
	}
}

// Send 实现 plugin.ReplySink
func (k *KafkaReplies) Send(ctx context.Context, roomID int64, text string) error {
	msg := ReplyMessage{
		MsgID:     uuid.New().String(),
		RoomID:    roomID,
		Text:      text,
		Timestamp: k.now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := k.producer.Send(ctx, roomKey(roomID), data); err != nil {
		metrics.SinkFailures.WithLabelValues("kafka-replies").Inc()
		return err
	}
	return nil
}

// Close 关闭生产者
func (k *KafkaReplies) Close() error {
	return k.producer.Close()
}

func roomKey(roomID int64) []byte {
	return []byte(strconv.FormatInt(roomID, 10))
}
