package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/danmuji/internal/protocol"
)

const roomID = 21452505

func notification(body string) protocol.Frame {
	return protocol.Frame{Kind: protocol.FrameNotification, Body: []byte(body)}
}

func mustComment(t *testing.T, body string) *Comment {
	t.Helper()
	ev, ok := Normalize(roomID, notification(body))
	require.True(t, ok)
	require.Equal(t, KindComment, ev.Kind)
	require.NotNil(t, ev.Comment)
	return ev.Comment
}

func TestNormalizeDanmuFull(t *testing.T) {
	c := mustComment(t, `{
		"cmd": "DANMU_MSG",
		"info": [
			[0, 1, 25, 16777215, 1650000000000, 0, 0, "", 0, 2, 0],
			"主播好",
			[10086, "测试用户", 1, 1, 0, 10000, 1, ""],
			[21, "勋章", "某主播", 5050, 1234],
			[30, ">50000"],
			["", ""],
			0,
			3
		]
	}`)

	assert.Equal(t, uint64(10086), c.UID)
	assert.Equal(t, "测试用户", c.Uname)
	assert.Equal(t, "主播好", c.Text)
	assert.True(t, c.IsGiftAuto)
	assert.Equal(t, time.UnixMilli(1650000000000), c.SentAt)
	assert.True(t, c.IsManager)
	assert.True(t, c.IsVIP)
	assert.False(t, c.IsSVIP)
	assert.True(t, c.IsFullMember)
	require.NotNil(t, c.Medal)
	assert.Equal(t, Medal{Level: 21, Name: "勋章", StreamerName: "某主播", StreamerRoomID: 5050}, *c.Medal)
	assert.Equal(t, int64(30), c.UserLevel)
	assert.Equal(t, ">50000", c.UserLevelRank)
	assert.Equal(t, GuardCaptain, c.Guard)
}

func TestNormalizeDanmuNoMedal(t *testing.T) {
	c := mustComment(t, `{"cmd":"DANMU_MSG","info":[[0,0,0,0,0,0,0,0,0,0],"hi",[1,"a",0,0,0,0],[],[5,"12345"],[],0,0]}`)
	assert.Nil(t, c.Medal)
	assert.Equal(t, int64(5), c.UserLevel)
	assert.Equal(t, "12345", c.UserLevelRank)
	assert.False(t, c.IsGiftAuto)
	assert.False(t, c.IsFullMember)
	assert.Equal(t, GuardNone, c.Guard)
}

func TestNormalizeDanmuMissingUserLevel(t *testing.T) {
	c := mustComment(t, `{"cmd":"DANMU_MSG","info":[[],"hi",[1,"a"],[]]}`)
	assert.Equal(t, int64(0), c.UserLevel)
	assert.Equal(t, DefaultLevelRank, c.UserLevelRank)
}

func TestNormalizeDanmuRankAtFourthSlot(t *testing.T) {
	c := mustComment(t, `{"cmd":"DANMU_MSG","info":[[],"hi",[1,"a"],[],[12,0,6406234,">50000",0]]}`)
	assert.Equal(t, int64(12), c.UserLevel)
	assert.Equal(t, ">50000", c.UserLevelRank)
}

func TestNormalizeDanmuDefaults(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no info", `{"cmd":"DANMU_MSG"}`},
		{"info not array", `{"cmd":"DANMU_MSG","info":{"a":1}}`},
		{"wrong types", `{"cmd":"DANMU_MSG","info":["x",42,[{"u":1},7],"medal",{"l":1},null,null,"3"]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := mustComment(t, tc.body)
			assert.Equal(t, uint64(0), c.UID)
			assert.Equal(t, DefaultUname, c.Uname)
			assert.Equal(t, "", c.Text)
			assert.True(t, c.SentAt.IsZero())
			assert.Nil(t, c.Medal)
			assert.Equal(t, int64(0), c.UserLevel)
			assert.Equal(t, DefaultLevelRank, c.UserLevelRank)
			assert.Equal(t, GuardNone, c.Guard)
		})
	}
}

func TestNormalizeDanmuCommandSuffix(t *testing.T) {
	c := mustComment(t, `{"cmd":"DANMU_MSG:4:0:2:2:2:0","info":[[],"hi",[7,"b"]]}`)
	assert.Equal(t, "hi", c.Text)
	assert.Equal(t, uint64(7), c.UID)
}

const sendGift = `{
	"cmd": "SEND_GIFT",
	"data": {
		"uid": 10086,
		"uname": "测试用户",
		"guard_level": 2,
		"giftName": "ignored",
		"combo_send": {"gift_id": 31036, "gift_name": "小花花", "gift_num": 5}
	}
}`

const comboSend = `{
	"cmd": "COMBO_SEND",
	"data": {
		"uid": 10086,
		"uname": "测试用户",
		"gift_id": 31036,
		"gift_name": "小花花",
		"combo_num": 5,
		"medal_info": {"guard_level": 2}
	}
}`

func TestNormalizeGiftEquivalence(t *testing.T) {
	single, ok := Normalize(roomID, notification(sendGift))
	require.True(t, ok)
	combo, ok := Normalize(roomID, notification(comboSend))
	require.True(t, ok)

	require.Equal(t, KindGift, single.Kind)
	require.Equal(t, KindGift, combo.Kind)
	assert.Equal(t, *single.Gift, *combo.Gift)
	assert.Equal(t, Gift{
		UID:      10086,
		Uname:    "测试用户",
		Guard:    GuardAdmiral,
		GiftID:   31036,
		GiftName: "小花花",
		Count:    5,
	}, *single.Gift)
}

func TestNormalizeGiftMissingRequired(t *testing.T) {
	cases := []string{
		`{"cmd":"SEND_GIFT","data":{"uname":"a","combo_send":{"gift_id":1,"gift_name":"x","gift_num":1}}}`,
		`{"cmd":"SEND_GIFT","data":{"uid":1,"uname":"a"}}`,
		`{"cmd":"SEND_GIFT"}`,
		`{"cmd":"COMBO_SEND","data":{"uid":1,"uname":"a","gift_id":1,"gift_name":"x"}}`,
		`{"cmd":"COMBO_SEND","data":{"uid":"1","uname":"a","gift_id":1,"gift_name":"x","combo_num":1}}`,
	}

	for _, body := range cases {
		_, ok := Normalize(roomID, notification(body))
		assert.False(t, ok, body)
	}
}

func TestNormalizeGiftWithoutGuard(t *testing.T) {
	ev, ok := Normalize(roomID, notification(`{"cmd":"COMBO_SEND","data":{"uid":1,"uname":"a","gift_id":1,"gift_name":"x","combo_num":3}}`))
	require.True(t, ok)
	assert.Equal(t, GuardNone, ev.Gift.Guard)
	assert.Equal(t, int64(3), ev.Gift.Count)
}

func TestNormalizeNoEvent(t *testing.T) {
	cases := []protocol.Frame{
		notification(`{}`),
		notification(`{"cmd":"INTERACT_WORD","data":{}}`),
		notification(`{"cmd":5}`),
		notification(`[1,2,3]`),
		{Kind: protocol.FrameAuthAck},
	}

	for _, f := range cases {
		_, ok := Normalize(roomID, f)
		assert.False(t, ok, string(f.Body))
	}
}

func TestNormalizePopularity(t *testing.T) {
	ev, ok := Normalize(roomID, protocol.Frame{Kind: protocol.FramePopularity, Popularity: 42})
	require.True(t, ok)
	assert.Equal(t, NewPopularity(roomID, 42), ev)
}

func TestNormalizeLiteralScenario(t *testing.T) {
	data := []byte{0, 0, 0, 0x14, 0, 0x10, 0, 0, 0, 0, 0, 5, 0, 0, 0, 1}
	data = append(data, []byte("{  }")...)

	frames, err := protocol.DecodeFrame(data)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	_, ok := Normalize(roomID, frames[0])
	assert.False(t, ok)
}

func TestGuardFromCode(t *testing.T) {
	assert.Equal(t, GuardGovernor, GuardFromCode(1))
	assert.Equal(t, GuardAdmiral, GuardFromCode(2))
	assert.Equal(t, GuardCaptain, GuardFromCode(3))
	assert.Equal(t, GuardNone, GuardFromCode(0))
	assert.Equal(t, GuardNone, GuardFromCode(9))
}

func TestEventClone(t *testing.T) {
	orig := NewComment(roomID, Comment{Uname: "a", Medal: &Medal{Name: "m"}})
	cp := orig.Clone()

	cp.Comment.Uname = "b"
	cp.Comment.Medal.Name = "n"

	assert.Equal(t, "a", orig.Comment.Uname)
	assert.Equal(t, "m", orig.Comment.Medal.Name)
}

func TestEnvelope(t *testing.T) {
	env := NewGift(roomID, Gift{GiftName: "x"}).Envelope()
	assert.Equal(t, "gift", env.Type)
	assert.Equal(t, int64(roomID), env.RoomID)
	assert.Equal(t, &Gift{GiftName: "x"}, env.Data)

	env = NewPopularity(roomID, 7).Envelope()
	assert.Equal(t, "popularity", env.Type)
	assert.Equal(t, int32(7), env.Data)
}
