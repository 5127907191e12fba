// Package main 提供 danmuji 的命令行跟踪客户端
//
// 默认连接 UI 桥接并打印事件；-replies 模式改为跟踪 Kafka 回复 topic。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/qiminjie89/danmuji/internal/protocol"
	"github.com/qiminjie89/danmuji/pkg/kafka"
	"github.com/qiminjie89/danmuji/pkg/logger"
)

// 配置
var (
	serverAddr = flag.String("addr", "ws://localhost:8000/ws", "bridge websocket address")
	roomID     = flag.Int64("room", 0, "only show events of this room (0 = all)")
	token      = flag.String("token", "", "bridge access token")
	format     = flag.String("format", "json", "wire format: json or msgpack")
	heartbeat  = flag.Duration("heartbeat", 10*time.Second, "heartbeat interval")

	replies = flag.Bool("replies", false, "tail the kafka reply topic instead of the bridge")
	brokers = flag.String("brokers", "localhost:9092", "kafka brokers, comma separated")
	topic   = flag.String("topic", "danmuji.replies", "kafka reply topic")
	group   = flag.String("group", "danmuji-tail", "kafka consumer group")

	verbose = flag.Bool("v", false, "verbose output")
)

func main() {
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Level: level, Format: "console", Output: "stderr"}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if *replies {
		err = tailReplies(ctx)
	} else {
		err = tailBridge(ctx)
	}
	if err != nil {
		logger.Error("client exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// tailBridge 订阅 UI 桥接并打印事件
func tailBridge(ctx context.Context) error {
	f, err := protocol.ParseFormat(*format)
	if err != nil {
		return err
	}

	u, err := url.Parse(*serverAddr)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("format", string(f))
	if *roomID != 0 {
		q.Set("room", strconv.FormatInt(*roomID, 10))
	}
	if *token != "" {
		q.Set("token", *token)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", *serverAddr, err)
	}
	defer conn.Close()

	logger.Info("connected to bridge", zap.String("addr", *serverAddr))

	// 心跳保活
	go heartbeatLoop(ctx, conn)

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		printEnvelope(f, data)
	}
}

// heartbeatLoop 定期发送心跳，桥接在超时未收到上行消息时断开
func heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(*heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				logger.Debug("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

type envelope struct {
	Type       string      `json:"type" msgpack:"type"`
	RoomID     int64       `json:"room_id" msgpack:"room_id"`
	ReceivedAt time.Time   `json:"received_at" msgpack:"received_at"`
	Raw        interface{} `json:"data" msgpack:"data"`
}

func printEnvelope(f protocol.Format, data []byte) {
	var env envelope
	if err := protocol.Unmarshal(f, data, &env); err != nil {
		logger.Warn("decode event failed", zap.Error(err))
		return
	}

	ts := env.ReceivedAt.Local().Format("15:04:05")
	fields, _ := env.Raw.(map[string]interface{})

	switch env.Type {
	case "comment":
		fmt.Printf("%s [%d] %v: %v\n", ts, env.RoomID, fields["uname"], fields["text"])
	case "gift":
		fmt.Printf("%s [%d] %v 投喂 %v x%v\n", ts, env.RoomID, fields["uname"], fields["gift_name"], fields["count"])
	case "popularity":
		fmt.Printf("%s [%d] 人气 %v\n", ts, env.RoomID, env.Raw)
	default:
		fmt.Printf("%s [%d] %s %v\n", ts, env.RoomID, env.Type, env.Raw)
	}
}

// tailReplies 跟踪插件回复 topic
func tailReplies(ctx context.Context) error {
	consumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
		Brokers:       strings.Split(*brokers, ","),
		Topic:         *topic,
		ConsumerGroup: *group,
		FromLatest:    true,
	})
	if err != nil {
		return err
	}
	defer consumer.Close()

	consumer.Start(ctx, func(msg *kafka.Message) error {
		fmt.Printf("%s [%s] %s\n", msg.Time.Local().Format("15:04:05"), msg.Key, msg.Value)
		return nil
	})
	return nil
}
