package protocol

import "encoding/json"

// 进房认证包中的客户端标识
const (
	ClientVersion  = "1.14.0"
	ClientPlatform = "web"
)

// AuthPayload 进房认证包负载
type AuthPayload struct {
	UID       uint64 `json:"uid"`
	RoomID    int64  `json:"roomid"`
	ProtoVer  int    `json:"protover"`
	Platform  string `json:"platform"`
	Type      int    `json:"type"`
	ClientVer string `json:"clientver"`
	Key       string `json:"key,omitempty"`
}

// NewAuthPayload 创建认证负载，userID 为 0 表示匿名
func NewAuthPayload(roomID int64, userID uint64) AuthPayload {
	return AuthPayload{
		UID:       userID,
		RoomID:    roomID,
		ProtoVer:  1,
		Platform:  ClientPlatform,
		Type:      2,
		ClientVer: ClientVersion,
	}
}

// HandshakeFrame 构造进房认证帧
func HandshakeFrame(roomID int64, userID uint64) ([]byte, error) {
	return NewAuthPayload(roomID, userID).Frame()
}

// Frame 将认证负载编码为 OpAuth 帧
func (p AuthPayload) Frame() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return Encode(OpAuth, VersionClient, data)
}

var heartbeatFrame = func() []byte {
	buf, _ := Encode(OpHeartbeat, VersionClient, nil)
	return buf
}()

// HeartbeatFrame 构造心跳帧（无负载）
func HeartbeatFrame() []byte {
	buf := make([]byte, len(heartbeatFrame))
	copy(buf, heartbeatFrame)
	return buf
}
