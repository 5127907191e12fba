package sink

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"go.uber.org/zap"
)

// Publisher NATS 发布接口（*nats.Conn 实现）
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnectNATS 连接 NATS，断线后无限重连
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("danmuji"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	)
}

// NATSEvents 把事件以 JSON 发布到 <prefix>.<room_id>.<kind>
type NATSEvents struct {
	pub    Publisher
	prefix string
	bus    *bus.Bus
}

// NewNATSEvents 创建 NATS 转发
func NewNATSEvents(pub Publisher, prefix string, b *bus.Bus) *NATSEvents {
	return &NATSEvents{
		pub:    pub,
		prefix: prefix,
		bus:    b,
	}
}

// Subject 事件对应的主题
func (n *NATSEvents) Subject(ev event.Event) string {
	return n.prefix + "." + strconv.FormatInt(ev.RoomID, 10) + "." + ev.Kind.String()
}

// Run 消费总线直到 ctx 取消
func (n *NATSEvents) Run(ctx context.Context) error {
	return consume(ctx, n.bus, "nats-events", n.write)
}

func (n *NATSEvents) write(_ context.Context, ev event.Event) error {
	data, err := json.Marshal(ev.Envelope())
	if err != nil {
		return err
	}
	return n.pub.Publish(n.Subject(ev), data)
}
