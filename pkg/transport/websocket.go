package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig WebSocket 配置
type WebSocketConfig struct {
	ReadBufferSize   int
	WriteBufferSize  int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	UserAgent        string
	Origin           string
}

// WebSocketDialer 基于 gorilla/websocket 的拨号器
type WebSocketDialer struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
}

// NewWebSocketDialer 创建拨号器
func NewWebSocketDialer(cfg WebSocketConfig) *WebSocketDialer {
	return &WebSocketDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Dial 建立连接
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	header := http.Header{}
	if d.cfg.UserAgent != "" {
		header.Set("User-Agent", d.cfg.UserAgent)
	}
	if d.cfg.Origin != "" {
		header.Set("Origin", d.cfg.Origin)
	}

	ws, resp, err := d.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return NewWebSocketConn(ws, d.cfg.WriteTimeout), nil
}

// WebSocketConn WebSocket 连接实现
type WebSocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

// NewWebSocketConn 包装已建立的 websocket 连接
func NewWebSocketConn(conn *websocket.Conn, writeTimeout time.Duration) *WebSocketConn {
	return &WebSocketConn{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// ReadMessage 读取一条消息
func (c *WebSocketConn) ReadMessage() (MessageType, []byte, error) {
	mt, data, err := c.conn.ReadMessage()
	return MessageType(mt), data, err
}

// WriteBinary 写入二进制消息（gorilla 要求同一时刻只有一个写者）
func (c *WebSocketConn) WriteBinary(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close 关闭连接
func (c *WebSocketConn) Close() error {
	return c.conn.Close()
}

// Underlying 返回底层 websocket.Conn
func (c *WebSocketConn) Underlying() *websocket.Conn {
	return c.conn
}

// IsPeerClose 判断是否为对端主动关闭
func IsPeerClose(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce)
}
