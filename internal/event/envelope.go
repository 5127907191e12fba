package event

import "time"

// Envelope 事件对外的序列化形式（UI 桥接、消息队列共用）
type Envelope struct {
	Type       string      `json:"type" msgpack:"type"`
	RoomID     int64       `json:"room_id" msgpack:"room_id"`
	ReceivedAt time.Time   `json:"received_at" msgpack:"received_at"`
	Data       interface{} `json:"data" msgpack:"data"`
}

// Envelope 转为对外结构
func (e Event) Envelope() Envelope {
	env := Envelope{
		Type:       e.Kind.String(),
		RoomID:     e.RoomID,
		ReceivedAt: e.ReceivedAt,
	}

	switch e.Kind {
	case KindComment:
		env.Data = e.Comment
	case KindGift:
		env.Data = e.Gift
	case KindPopularity:
		env.Data = e.Popularity
	}

	return env
}
