package event

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/qiminjie89/danmuji/internal/protocol"
)

// 通知命令
const (
	CmdDanmu     = "DANMU_MSG"
	CmdSendGift  = "SEND_GIFT"
	CmdComboSend = "COMBO_SEND"
)

// 字段缺失时的默认值
const (
	DefaultUname     = "匿名用户"
	DefaultLevelRank = ">50000"
)

// 平台约定的标志取值
const (
	flagTrue       = 1
	flagGiftAuto   = 2
	flagFullMember = 10000
)

// Normalize 把解码后的帧转为领域事件
//
// 平台负载格式不稳定，任何字段缺失或类型不符都按默认值处理；
// 只有礼物事件缺少必需字段时才整条丢弃。
func Normalize(roomID int64, f protocol.Frame) (Event, bool) {
	switch f.Kind {
	case protocol.FramePopularity:
		return NewPopularity(roomID, f.Popularity), true
	case protocol.FrameNotification:
		return normalizeNotification(roomID, gjson.ParseBytes(f.Body))
	default:
		return Event{}, false
	}
}

// Command 读取通知的 cmd 字段，去掉新版协议附加的 ":..." 后缀
func Command(body gjson.Result) string {
	cmd := body.Get("cmd")
	if cmd.Type != gjson.String {
		return ""
	}
	name, _, _ := strings.Cut(cmd.Str, ":")
	return name
}

func normalizeNotification(roomID int64, body gjson.Result) (Event, bool) {
	switch Command(body) {
	case CmdDanmu:
		return NewComment(roomID, parseDanmu(body.Get("info"))), true

	case CmdSendGift:
		data := body.Get("data")
		g, ok := parseGift(data, giftPaths{
			guard:  "guard_level",
			giftID: "combo_send.gift_id",
			name:   "combo_send.gift_name",
			count:  "combo_send.gift_num",
		})
		if !ok {
			return Event{}, false
		}
		return NewGift(roomID, g), true

	case CmdComboSend:
		data := body.Get("data")
		g, ok := parseGift(data, giftPaths{
			guard:  "medal_info.guard_level",
			giftID: "gift_id",
			name:   "gift_name",
			count:  "combo_num",
		})
		if !ok {
			return Event{}, false
		}
		return NewGift(roomID, g), true

	default:
		return Event{}, false
	}
}

// parseDanmu 解析 info 位置数组
//
//	info[0]: [.., .., .., .., sent_time(ms), .., .., .., .., gift_auto_flag, ...]
//	info[1]: 弹幕内容
//	info[2]: [uid, uname, is_manager, is_vip, is_svip, full_member(10000), ...]
//	info[3]: [] 或 [level, medal_name, streamer_name, streamer_room_id, ...]
//	info[4]: [level, rank_label] 或缺失
//	info[7]: guard_level
func parseDanmu(info gjson.Result) Comment {
	meta := index(info, 0)
	user := index(info, 2)

	c := Comment{
		UID:          uintAt(user, 0, 0),
		Uname:        stringAt(user, 1, DefaultUname),
		Text:         stringAt(info, 1, ""),
		IsGiftAuto:   intAt(meta, 9, 0) == flagGiftAuto,
		IsManager:    intAt(user, 2, 0) == flagTrue,
		IsVIP:        intAt(user, 3, 0) == flagTrue,
		IsSVIP:       intAt(user, 4, 0) == flagTrue,
		IsFullMember: intAt(user, 5, 0) == flagFullMember,
		Medal:        parseMedal(index(info, 3)),
		Guard:        GuardFromCode(intAt(info, 7, 0)),
	}

	if ts := intAt(meta, 4, 0); ts > 0 {
		c.SentAt = time.UnixMilli(ts)
	}

	c.UserLevel, c.UserLevelRank = parseUserLevel(index(info, 4))
	return c
}

func parseMedal(medal gjson.Result) *Medal {
	if !medal.IsArray() || len(medal.Array()) < 4 {
		return nil
	}

	return &Medal{
		Level:          intAt(medal, 0, 0),
		Name:           stringAt(medal, 1, ""),
		StreamerName:   stringAt(medal, 2, ""),
		StreamerRoomID: intAt(medal, 3, 0),
	}
}

// parseUserLevel 解析用户等级；部分服务端版本把排名放在第 4 位
func parseUserLevel(ul gjson.Result) (int64, string) {
	if !ul.IsArray() {
		return 0, DefaultLevelRank
	}

	level := intAt(ul, 0, 0)
	if r := index(ul, 1); r.Type == gjson.String {
		return level, r.Str
	}
	return level, stringAt(ul, 3, DefaultLevelRank)
}

type giftPaths struct {
	guard  string
	giftID string
	name   string
	count  string
}

func parseGift(data gjson.Result, p giftPaths) (Gift, bool) {
	uid := data.Get("uid")
	uname := data.Get("uname")
	giftID := data.Get(p.giftID)
	name := data.Get(p.name)
	count := data.Get(p.count)

	if uid.Type != gjson.Number || uname.Type != gjson.String ||
		giftID.Type != gjson.Number || name.Type != gjson.String ||
		count.Type != gjson.Number {
		return Gift{}, false
	}

	guard := GuardNone
	if g := data.Get(p.guard); g.Type == gjson.Number {
		guard = GuardFromCode(g.Int())
	}

	return Gift{
		UID:      uid.Uint(),
		Uname:    uname.Str,
		Guard:    guard,
		GiftID:   giftID.Int(),
		GiftName: name.Str,
		Count:    count.Int(),
	}, true
}
