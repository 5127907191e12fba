// Package protocol 实现直播平台弹幕 WebSocket 的二进制帧编解码
package protocol

import "strconv"

// OpCode 帧操作码
type OpCode uint32

// 客户端 → 服务端
const (
	OpHeartbeat OpCode = 2 // 心跳
	OpAuth      OpCode = 7 // 认证（进房）
)

// 服务端 → 客户端
const (
	OpHeartbeatReply OpCode = 3 // 心跳回复，携带人气值
	OpNotification   OpCode = 5 // 通知（弹幕、礼物等）
	OpAuthReply      OpCode = 8 // 认证回复
)

// 协议版本
const (
	VersionPlain  uint16 = 0 // 负载为 JSON
	VersionClient uint16 = 1 // 客户端帧使用
	VersionZlib   uint16 = 2 // 负载为 zlib 压缩的多个子帧
)

// Known 是否为已知操作码
func (op OpCode) Known() bool {
	switch op {
	case OpHeartbeat, OpHeartbeatReply, OpNotification, OpAuth, OpAuthReply:
		return true
	default:
		return false
	}
}

func (op OpCode) String() string {
	switch op {
	case OpHeartbeat:
		return "heartbeat"
	case OpHeartbeatReply:
		return "heartbeat_reply"
	case OpNotification:
		return "notification"
	case OpAuth:
		return "auth"
	case OpAuthReply:
		return "auth_reply"
	default:
		return "unrecognized(" + strconv.FormatUint(uint64(op), 10) + ")"
	}
}
