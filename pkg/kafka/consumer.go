package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/qiminjie89/danmuji/pkg/logger"
)

// ErrIncompleteConfig 消费者配置缺项
var ErrIncompleteConfig = errors.New("kafka consumer config incomplete")

// ConsumerConfig Kafka 消费者配置
type ConsumerConfig struct {
	Brokers       []string // Kafka broker 地址
	Topic         string   // 订阅的 topic
	ConsumerGroup string   // 消费组 ID
	FromLatest    bool     // 新消费组从最新位置开始
}

// Reader kafka.Reader 的最小接口
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer Kafka 消费者
type Consumer struct {
	topic     string
	reader    Reader
	connected atomic.Bool
}

// MessageHandler 消息处理函数
type MessageHandler func(msg *Message) error

// Message Kafka 消息
type Message struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
	Time      time.Time
}

// NewConsumer 创建 Kafka 消费者
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.ConsumerGroup == "" {
		return nil, ErrIncompleteConfig
	}

	startOffset := kafka.FirstOffset
	if cfg.FromLatest {
		startOffset = kafka.LastOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})

	return NewConsumerWithReader(cfg.Topic, reader), nil
}

// NewConsumerWithReader 使用指定 reader 创建消费者
func NewConsumerWithReader(topic string, reader Reader) *Consumer {
	c := &Consumer{
		topic:  topic,
		reader: reader,
	}
	c.connected.Store(true)
	return c
}

// Start 启动消费循环，直到 ctx 取消
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) {
	logger.Info("kafka consumer started", zap.String("topic", c.topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.connected.Store(false)
			logger.Error("kafka fetch message failed", zap.Error(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.connected.Store(true)

		if err := handler(&Message{
			Key:       msg.Key,
			Value:     msg.Value,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Time:      msg.Time,
		}); err != nil {
			logger.Error("kafka message handler failed",
				zap.Error(err),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		}

		// 提交 offset
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error("kafka commit failed", zap.Error(err))
		}
	}
}

// IsConnected 检查是否连接正常
func (c *Consumer) IsConnected() bool {
	return c.connected.Load()
}

// Close 关闭消费者
func (c *Consumer) Close() error {
	return c.reader.Close()
}
