// Package kafka 提供 Kafka 客户端封装
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/qiminjie89/danmuji/pkg/logger"
)

// ProducerConfig Kafka 生产者配置
type ProducerConfig struct {
	Brokers      []string      // Kafka broker 地址
	Topic        string        // 目标 topic
	BatchSize    int           // 批量条数
	BatchTimeout time.Duration // 批量等待时间
}

// Writer kafka.Writer 的最小接口，测试中可替换
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer Kafka 生产者
type Producer struct {
	topic  string
	writer Writer
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg *ProducerConfig) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{}, // 按房间号哈希分区，保证同房间有序
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(cfg.Topic, writer)
}

// NewProducerWithWriter 使用指定 writer 创建生产者
func NewProducerWithWriter(topic string, writer Writer) *Producer {
	return &Producer{
		topic:  topic,
		writer: writer,
	}
}

// Topic 目标 topic
func (p *Producer) Topic() string {
	return p.topic
}

// Send 发送消息
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	msg := kafka.Message{
		Key:   key,
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error("kafka send failed",
			zap.Error(err),
			zap.String("topic", p.topic),
		)
		return err
	}

	return nil
}

// SendBatch 批量发送消息
func (p *Producer) SendBatch(ctx context.Context, messages []kafka.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		logger.Error("kafka batch send failed",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.Int("count", len(messages)),
		)
		return err
	}
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}
