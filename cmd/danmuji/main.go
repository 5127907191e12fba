package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qiminjie89/danmuji/internal/bridge"
	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/internal/connector"
	"github.com/qiminjie89/danmuji/internal/plugin"
	"github.com/qiminjie89/danmuji/internal/sink"
	"github.com/qiminjie89/danmuji/pkg/config"
	"github.com/qiminjie89/danmuji/pkg/kafka"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"github.com/qiminjie89/danmuji/pkg/transport"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "", "config file path (defaults only when empty)")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("load config failed: " + err.Error())
	}

	// 初始化日志
	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("starting danmuji",
		zap.String("config", *configPath),
		zap.Int("rooms", len(cfg.Rooms)),
	)

	if err := run(cfg); err != nil {
		logger.Error("danmuji exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("danmuji stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bus.New(cfg.Bus.SubscriberBuffer)
	dialer := transport.NewWebSocketDialer(transport.WebSocketConfig{
		ReadBufferSize:   cfg.Connector.ReadBufferSize,
		WriteBufferSize:  cfg.Connector.WriteBufferSize,
		HandshakeTimeout: cfg.Connector.HandshakeTimeout,
		WriteTimeout:     cfg.Connector.WriteTimeout,
		UserAgent:        cfg.Connector.UserAgent,
		Origin:           cfg.Connector.Origin,
	})
	rooms := connector.New(&cfg.Connector, dialer, b)

	g, ctx := errgroup.WithContext(ctx)

	// 回复投递：配置了 Kafka 回复 topic 时写入 Kafka，否则只记日志
	var replies plugin.ReplySink = sink.LogReplies{}
	if cfg.Kafka.Enabled() && cfg.Kafka.ReplyTopic != "" {
		kr := sink.NewKafkaReplies(kafka.NewProducer(producerConfig(&cfg.Kafka, cfg.Kafka.ReplyTopic)))
		defer kr.Close()
		replies = kr
	}

	// 事件归档
	if cfg.Kafka.Enabled() && cfg.Kafka.EventTopic != "" {
		ke := sink.NewKafkaEvents(kafka.NewProducer(producerConfig(&cfg.Kafka, cfg.Kafka.EventTopic)), b)
		defer ke.Close()
		g.Go(func() error { return ke.Run(ctx) })
	}

	// 事件转发到 NATS
	if cfg.NATS.URL != "" {
		nc, err := sink.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer drainNATS(nc)
		ne := sink.NewNATSEvents(nc, cfg.NATS.SubjectPrefix, b)
		g.Go(func() error { return ne.Run(ctx) })
	}

	// 插件
	executor := plugin.NewExecutor(b, replies, cfg.Plugins.ReplyRate, cfg.Plugins.ReplyBurst)
	thanker, err := plugin.NewGiftThanker(cfg.Plugins.GiftThanker)
	if err != nil {
		return err
	}
	executor.Register(thanker)
	if cfg.Plugins.Chatbot.Enabled {
		executor.Register(plugin.NewChatbot(cfg.Plugins.Chatbot))
	}
	g.Go(func() error { return executor.Run(ctx) })

	// UI 桥接
	var opts []bridge.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, bridge.WithMetrics())
	}
	server := bridge.NewServer(&cfg.Bridge, rooms, b, opts...)
	g.Go(func() error { return server.Run(ctx) })

	for _, r := range cfg.Rooms {
		rooms.Start(r.RoomID, r.UserID)
	}

	err = g.Wait()

	logger.Info("received shutdown signal, stopping rooms")
	rooms.ShutdownAll()
	b.Close()
	return err
}

func producerConfig(cfg *config.KafkaConfig, topic string) *kafka.ProducerConfig {
	return &kafka.ProducerConfig{
		Brokers:      cfg.Brokers,
		Topic:        topic,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
}

func drainNATS(nc *nats.Conn) {
	if err := nc.Drain(); err != nil {
		logger.Warn("nats drain failed", zap.Error(err))
	}
}
