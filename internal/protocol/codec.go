package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Format 本地下游（UI 桥接、消息队列）使用的负载编码
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat 解析编码名，空串视为 JSON
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// Marshal 按指定格式编码
func Marshal(f Format, v interface{}) ([]byte, error) {
	if f == FormatMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Unmarshal 按指定格式解码
func Unmarshal(f Format, data []byte, v interface{}) error {
	if f == FormatMsgpack {
		return msgpack.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}
