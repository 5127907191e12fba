package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"github.com/tidwall/gjson"
)

/*
直播平台 WebSocket 帧格式（大端序）：
+---------------+---------------+---------------+-----------+-----------+-----------+
| PacketLength  | HeaderLength  |   Version     | Operation | Sequence  |  Payload  |
|    4 bytes    |   2 bytes     |   2 bytes     |  4 bytes  |  4 bytes  |   变长     |
+---------------+---------------+---------------+-----------+-----------+-----------+
PacketLength 包含头部本身；HeaderLength 固定 16；Sequence 客户端固定 1。
*/

const (
	HeaderSize = 16
	// ClientSequence 客户端发出的帧固定使用的序号
	ClientSequence uint32 = 1
	// MaxInflatedSize 单个压缩批次解压后的上限，防止解压炸弹
	MaxInflatedSize = 16 << 20
)

// Header 帧头
type Header struct {
	PacketLength    uint32
	HeaderLength    uint16
	ProtocolVersion uint16
	Operation       OpCode
	Sequence        uint32
}

// PayloadLength 返回头部声明的负载长度
func (h Header) PayloadLength() int {
	if h.PacketLength < HeaderSize {
		return 0
	}
	return int(h.PacketLength) - HeaderSize
}

// FrameKind 解码后的帧类型（仅服务端下发的三种操作）
type FrameKind int

const (
	FramePopularity   FrameKind = iota // 心跳回复，携带人气值
	FrameNotification                  // 通知，携带 JSON 文档
	FrameAuthAck                       // 认证回复，无负载
)

func (k FrameKind) String() string {
	switch k {
	case FramePopularity:
		return "popularity"
	case FrameNotification:
		return "notification"
	case FrameAuthAck:
		return "auth_ack"
	default:
		return "unknown"
	}
}

// Frame 解码后的帧
type Frame struct {
	Kind       FrameKind
	Popularity int32
	Body       json.RawMessage // 仅 FrameNotification 有效，已通过 JSON 校验
}

// EncodeHeader 编码帧头
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, h)
	return buf
}

func putHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint32(buf[0:4], h.PacketLength)
	binary.BigEndian.PutUint16(buf[4:6], h.HeaderLength)
	binary.BigEndian.PutUint16(buf[6:8], h.ProtocolVersion)
	binary.BigEndian.PutUint32(buf[8:12], uint32(h.Operation))
	binary.BigEndian.PutUint32(buf[12:16], h.Sequence)
}

// DecodeHeader 解码帧头，只做字段提取
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes", ErrTruncatedHeader, len(data))
	}

	return Header{
		PacketLength:    binary.BigEndian.Uint32(data[0:4]),
		HeaderLength:    binary.BigEndian.Uint16(data[4:6]),
		ProtocolVersion: binary.BigEndian.Uint16(data[6:8]),
		Operation:       OpCode(binary.BigEndian.Uint32(data[8:12])),
		Sequence:        binary.BigEndian.Uint32(data[12:16]),
	}, nil
}

// Encode 编码一个客户端帧
func Encode(op OpCode, version uint16, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32-HeaderSize {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, HeaderSize+len(payload))
	putHeader(buf, Header{
		PacketLength:    uint32(HeaderSize + len(payload)),
		HeaderLength:    HeaderSize,
		ProtocolVersion: version,
		Operation:       op,
		Sequence:        ClientSequence,
	})
	copy(buf[HeaderSize:], payload)

	return buf, nil
}

// DecodeFrame 解码一个完整的线上帧
//
// 返回值中的帧即使伴随 error 也是有效的：压缩批次中途损坏时，
// 已解出的子帧照常返回，只放弃批次剩余部分。
func DecodeFrame(data []byte) ([]Frame, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}

	if int(h.PacketLength) != len(data) || h.PacketLength < HeaderSize {
		return nil, fmt.Errorf("%w: header says %d, got %d bytes",
			ErrLengthMismatch, h.PacketLength, len(data))
	}

	return decodeBody(h, data[HeaderSize:])
}

func decodeBody(h Header, payload []byte) ([]Frame, error) {
	switch h.Operation {
	case OpHeartbeatReply:
		return []Frame{{Kind: FramePopularity, Popularity: decodePopularity(payload)}}, nil

	case OpAuthReply:
		return []Frame{{Kind: FrameAuthAck}}, nil

	case OpNotification:
		if h.ProtocolVersion == VersionZlib {
			return decodeBatch(payload)
		}
		f, err := decodeNotification(payload)
		if err != nil {
			return nil, err
		}
		return []Frame{f}, nil

	default:
		// 未识别的操作码直接忽略，保持前向兼容
		return nil, nil
	}
}

// decodePopularity 服务端偶尔发送空的心跳回复，不足 4 字节时按 0 处理
func decodePopularity(payload []byte) int32 {
	if len(payload) < 4 {
		return 0
	}
	return int32(binary.BigEndian.Uint32(payload[0:4]))
}

func decodeNotification(payload []byte) (Frame, error) {
	if !gjson.ValidBytes(payload) {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrJSONParse, len(payload))
	}

	body := make(json.RawMessage, len(payload))
	copy(body, payload)
	return Frame{Kind: FrameNotification, Body: body}, nil
}

// decodeBatch 解压并逐个拆分子帧
func decodeBatch(payload []byte) ([]Frame, error) {
	buf, err := inflate(payload)
	if err != nil {
		return nil, err
	}

	var (
		frames []Frame
		errs   []error
	)

	for offset := 0; offset < len(buf); {
		h, err := DecodeHeader(buf[offset:])
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: at offset %d: %v", ErrCorruptBatch, offset, err))
			break
		}

		end := offset + int(h.PacketLength)
		if h.PacketLength < HeaderSize || end > len(buf) {
			errs = append(errs, fmt.Errorf("%w: sub-frame at offset %d declares %d bytes, %d left",
				ErrCorruptBatch, offset, h.PacketLength, len(buf)-offset))
			break
		}

		if h.Operation == OpNotification {
			f, err := decodeNotification(buf[offset+HeaderSize : end])
			if err != nil {
				errs = append(errs, err)
			} else {
				frames = append(frames, f)
			}
		} else {
			sub, err := decodeBody(h, buf[offset+HeaderSize:end])
			if err != nil {
				errs = append(errs, err)
			}
			frames = append(frames, sub...)
		}

		offset = end
	}

	return frames, errors.Join(errs...)
}

func inflate(payload []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	defer zr.Close()

	buf, err := io.ReadAll(io.LimitReader(zr, MaxInflatedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	if len(buf) > MaxInflatedSize {
		return nil, fmt.Errorf("%w: inflated batch exceeds %d bytes", ErrDecompression, MaxInflatedSize)
	}

	return buf, nil
}
