package protocol

import "errors"

// 解码错误。单帧错误只影响该帧，不会中断连接。
var (
	ErrTruncatedHeader = errors.New("truncated header")
	ErrLengthMismatch  = errors.New("packet length mismatch")
	ErrCorruptBatch    = errors.New("corrupt batch")
	ErrDecompression   = errors.New("decompression failure")
	ErrJSONParse       = errors.New("json parse failure")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ErrorKind 返回错误分类，用于日志和监控标签
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTruncatedHeader):
		return "truncated_header"
	case errors.Is(err, ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, ErrCorruptBatch):
		return "corrupt_batch"
	case errors.Is(err, ErrDecompression):
		return "decompression"
	case errors.Is(err, ErrJSONParse):
		return "json_parse"
	case errors.Is(err, ErrPayloadTooLarge):
		return "payload_too_large"
	default:
		return "other"
	}
}
