// Package transport 提供到直播平台的客户端传输层抽象
package transport

import "context"

// MessageType WebSocket 消息类型
type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
)

// Dialer 建立到平台的连接
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn 连接接口
//
// ReadMessage 只允许一个 goroutine 调用；WriteBinary 可并发调用；
// Close 可在任意 goroutine 调用，用于打断阻塞中的读。
type Conn interface {
	ReadMessage() (MessageType, []byte, error)
	WriteBinary(data []byte) error
	Close() error
}
