package bridge

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/internal/protocol"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"github.com/qiminjie89/danmuji/pkg/metrics"
	"go.uber.org/zap"
)

// Client 一个 UI 客户端连接
type Client struct {
	ID     string
	RoomID int64 // 0 表示全部房间

	ws     *websocket.Conn
	sub    *bus.Subscription
	format protocol.Format

	heartbeatTimeout time.Duration
	writeTimeout     time.Duration

	closeOnce sync.Once
	closeCh   chan struct{}

	server *Server
}

// Start 启动读写循环
func (c *Client) Start() {
	go c.readLoop()
	go c.writeLoop()
}

// readLoop 任意上行消息都视为心跳，超时未收到则断开
func (c *Client) readLoop() {
	for {
		c.ws.SetReadDeadline(time.Now().Add(c.heartbeatTimeout))
		if _, _, err := c.ws.ReadMessage(); err != nil {
			reason := "read_error"
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				reason = "heartbeat_timeout"
			}
			logger.Debug("bridge client read error",
				zap.String("client_id", c.ID),
				zap.Error(err),
			)
			c.Close(reason)
			return
		}
	}
}

// writeLoop 把总线事件写给客户端
func (c *Client) writeLoop() {
	for {
		select {
		case <-c.closeCh:
			return

		case ev, ok := <-c.sub.C():
			if !ok {
				c.Close("bus_closed")
				return
			}
			if c.RoomID != 0 && ev.RoomID != c.RoomID {
				continue
			}
			if err := c.write(ev); err != nil {
				logger.Debug("bridge client write error",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
				c.Close("write_error")
				return
			}
		}
	}
}

func (c *Client) write(ev event.Event) error {
	data, err := protocol.Marshal(c.format, ev.Envelope())
	if err != nil {
		logger.Warn("encode event failed", zap.Error(err))
		return nil
	}

	msgType := websocket.TextMessage
	if c.format == protocol.FormatMsgpack {
		msgType = websocket.BinaryMessage
	}

	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(msgType, data)
}

// Close 关闭连接并取消订阅
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.sub.Close()
		c.ws.Close()

		metrics.BridgeCloseReason.WithLabelValues(reason).Inc()
		metrics.BridgeClients.Dec()

		if c.server != nil {
			c.server.removeClient(c.ID)
		}

		logger.Debug("bridge client closed",
			zap.String("client_id", c.ID),
			zap.String("reason", reason),
		)
	})
}
