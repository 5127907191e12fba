package connector

// State 房间连接状态
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticated
	StateStreaming
	StateReconnecting
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Observer 状态变更回调，在 worker 自己的 goroutine 中同步调用
type Observer func(roomID int64, state State)
