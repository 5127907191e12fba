// Package event 定义下游订阅者消费的领域事件，并负责把平台通知归一化为事件
package event

import "time"

// Kind 事件类型
type Kind int

const (
	KindComment    Kind = iota + 1 // 弹幕
	KindGift                       // 礼物
	KindPopularity                 // 人气值
)

func (k Kind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindGift:
		return "gift"
	case KindPopularity:
		return "popularity"
	default:
		return "unknown"
	}
}

// GuardTier 大航海等级
type GuardTier int

const (
	GuardNone     GuardTier = iota // 无
	GuardCaptain                   // 舰长
	GuardAdmiral                   // 提督
	GuardGovernor                  // 总督
)

// guardCodes 平台 guard_level 编码到等级的映射：1 为最高级（总督）
var guardCodes = map[int64]GuardTier{
	1: GuardGovernor,
	2: GuardAdmiral,
	3: GuardCaptain,
}

// GuardFromCode 把平台编码转为大航海等级，未知编码视为无
func GuardFromCode(code int64) GuardTier {
	return guardCodes[code]
}

func (g GuardTier) String() string {
	switch g {
	case GuardCaptain:
		return "captain"
	case GuardAdmiral:
		return "admiral"
	case GuardGovernor:
		return "governor"
	default:
		return "none"
	}
}

// Event 领域事件，Kind 决定哪个字段有效
type Event struct {
	Kind       Kind
	RoomID     int64
	ReceivedAt time.Time

	Comment    *Comment
	Gift       *Gift
	Popularity int32
}

// Comment 弹幕
type Comment struct {
	UID          uint64    `json:"uid" msgpack:"uid"`
	Uname        string    `json:"uname" msgpack:"uname"`
	Text         string    `json:"text" msgpack:"text"`
	IsGiftAuto   bool      `json:"is_gift_auto" msgpack:"is_gift_auto"` // 投喂礼物时自动生成的弹幕
	SentAt       time.Time `json:"sent_at" msgpack:"sent_at"`
	IsManager    bool      `json:"is_manager" msgpack:"is_manager"` // 房管
	IsVIP        bool      `json:"is_vip" msgpack:"is_vip"`
	IsSVIP       bool      `json:"is_svip" msgpack:"is_svip"`
	IsFullMember bool      `json:"is_full_member" msgpack:"is_full_member"` // 正式会员
	Medal        *Medal    `json:"medal,omitempty" msgpack:"medal,omitempty"`

	UserLevel     int64     `json:"user_level" msgpack:"user_level"`
	UserLevelRank string    `json:"user_level_rank" msgpack:"user_level_rank"`
	Guard         GuardTier `json:"guard" msgpack:"guard"`
}

// Medal 粉丝勋章
type Medal struct {
	Level          int64  `json:"level" msgpack:"level"`
	Name           string `json:"name" msgpack:"name"`
	StreamerName   string `json:"streamer_name" msgpack:"streamer_name"`
	StreamerRoomID int64  `json:"streamer_room_id" msgpack:"streamer_room_id"`
}

// Gift 礼物（单次投喂和连击统一为同一结构）
type Gift struct {
	UID      uint64    `json:"uid" msgpack:"uid"`
	Uname    string    `json:"uname" msgpack:"uname"`
	Guard    GuardTier `json:"guard" msgpack:"guard"`
	GiftID   int64     `json:"gift_id" msgpack:"gift_id"`
	GiftName string    `json:"gift_name" msgpack:"gift_name"`
	Count    int64     `json:"count" msgpack:"count"`
}

// NewPopularity 创建人气事件
func NewPopularity(roomID int64, n int32) Event {
	return Event{Kind: KindPopularity, RoomID: roomID, Popularity: n}
}

// NewComment 创建弹幕事件
func NewComment(roomID int64, c Comment) Event {
	return Event{Kind: KindComment, RoomID: roomID, Comment: &c}
}

// NewGift 创建礼物事件
func NewGift(roomID int64, g Gift) Event {
	return Event{Kind: KindGift, RoomID: roomID, Gift: &g}
}

// Clone 深拷贝，保证每个订阅者持有独立副本
func (e Event) Clone() Event {
	out := e
	if e.Comment != nil {
		c := *e.Comment
		if e.Comment.Medal != nil {
			m := *e.Comment.Medal
			c.Medal = &m
		}
		out.Comment = &c
	}
	if e.Gift != nil {
		g := *e.Gift
		out.Gift = &g
	}
	return out
}
