package connector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/internal/protocol"
	"github.com/qiminjie89/danmuji/pkg/config"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"github.com/qiminjie89/danmuji/pkg/metrics"
	"github.com/qiminjie89/danmuji/pkg/transport"
	"go.uber.org/zap"
)

var (
	// ErrHandshakeSend 认证包发送失败
	ErrHandshakeSend = errors.New("handshake send failure")
	// ErrTransport 连接层错误（拨号、读取、对端关闭）
	ErrTransport = errors.New("transport error")
)

// Worker 维护单个房间到平台的连接
type Worker struct {
	roomID int64
	userID uint64

	cfg      *config.ConnectorConfig
	dialer   transport.Dialer
	bus      *bus.Bus
	observer Observer
	log      *zap.Logger
	now      func() time.Time

	shutdown atomic.Bool
	state    atomic.Int32
	since    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	connMu sync.Mutex
	conn   transport.Conn
}

// NewWorker 创建 worker，调用 Run 后开始工作
func NewWorker(roomID int64, userID uint64, cfg *config.ConnectorConfig, dialer transport.Dialer, b *bus.Bus, observer Observer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		roomID:   roomID,
		userID:   userID,
		cfg:      cfg,
		dialer:   dialer,
		bus:      b,
		observer: observer,
		log:      logger.Room(roomID),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	w.since.Store(w.now().UnixMilli())
	return w
}

// RoomID 房间号
func (w *Worker) RoomID() int64 {
	return w.roomID
}

// UserID 认证用户，0 表示匿名
func (w *Worker) UserID() uint64 {
	return w.userID
}

// State 当前状态
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Since 进入当前状态的时间
func (w *Worker) Since() time.Time {
	return time.UnixMilli(w.since.Load())
}

// Done worker 退出后关闭
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stop 设置退出标志并关闭当前连接，使阻塞中的读立即返回
func (w *Worker) Stop() {
	w.shutdown.Store(true)
	w.cancel()

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.Close()
	}
	w.connMu.Unlock()
}

// Run 运行连接循环，直到退出标志被设置
func (w *Worker) Run() {
	defer close(w.done)
	defer w.cancel()

	if w.userID == 0 {
		w.log.Warn("connecting anonymously, user info in comments may be masked")
	}

	for attempt := 0; ; attempt++ {
		if w.shutdown.Load() {
			break
		}

		if attempt > 0 {
			w.setState(StateReconnecting)
			metrics.ConnectorReconnects.WithLabelValues(w.label()).Inc()
			if !w.sleep(w.cfg.ReconnectDelay) {
				break
			}
		}

		err := w.session()
		if w.shutdown.Load() {
			break
		}
		w.log.Warn("connection lost, reconnecting",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", w.cfg.ReconnectDelay),
			zap.Error(err),
		)
	}

	w.setState(StateShuttingDown)
	w.setState(StateStopped)
	w.log.Info("worker stopped")
}

// session 一次完整的连接：拨号、认证、心跳、读循环
func (w *Worker) session() error {
	w.setState(StateConnecting)

	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()

	conn, err := w.dialer.Dial(ctx, w.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrTransport, err)
	}
	w.setConn(conn)
	defer w.setConn(nil)
	defer conn.Close()

	auth := protocol.NewAuthPayload(w.roomID, w.userID)
	auth.Key = w.cfg.AuthKey
	handshake, err := auth.Frame()
	if err != nil {
		return err
	}
	// 不等待 AuthReply，直接进入读循环
	if err := conn.WriteBinary(handshake); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeSend, err)
	}
	w.setState(StateAuthenticated)

	hbDone := make(chan struct{})
	go w.heartbeat(ctx, conn, hbDone)
	defer func() {
		cancel()
		<-hbDone
	}()

	w.setState(StateStreaming)
	w.log.Info("room connected", zap.Uint64("user_id", w.userID))

	return w.readLoop(conn)
}

// readLoop 读循环，每次迭代检查一次退出标志
func (w *Worker) readLoop(conn transport.Conn) error {
	for {
		if w.shutdown.Load() {
			return nil
		}

		mt, data, err := conn.ReadMessage()
		if err != nil {
			if transport.IsPeerClose(err) {
				return fmt.Errorf("%w: peer closed: %w", ErrTransport, err)
			}
			return fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
		if mt != transport.BinaryMessage {
			continue
		}

		w.handleMessage(data)
	}
}

// handleMessage 解码并发布事件，单帧错误只记录日志
func (w *Worker) handleMessage(data []byte) {
	frames, err := protocol.DecodeFrame(data)
	if err != nil {
		metrics.ConnectorDecodeErrors.WithLabelValues(protocol.ErrorKind(err)).Inc()
		w.log.Warn("decode frame error",
			zap.Int("size", len(data)),
			zap.Int("frames_kept", len(frames)),
			zap.Error(err),
		)
	}

	receivedAt := w.now()
	for _, f := range frames {
		metrics.ConnectorFramesReceived.WithLabelValues(f.Kind.String()).Inc()

		ev, ok := event.Normalize(w.roomID, f)
		if !ok {
			continue
		}
		ev.ReceivedAt = receivedAt
		w.bus.Publish(ev)
	}
}

// heartbeat 立即发送第一个心跳，之后按间隔发送；发送失败时关闭连接让读循环退出
func (w *Worker) heartbeat(ctx context.Context, conn transport.Conn, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteBinary(protocol.HeartbeatFrame()); err != nil {
			metrics.ConnectorHeartbeatFailures.Inc()
			w.log.Debug("heartbeat send failed", zap.Error(err))
			conn.Close()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sleep 可被 Stop 打断的等待，返回 false 表示已停止
func (w *Worker) sleep(d time.Duration) bool {
	if d <= 0 {
		return !w.shutdown.Load()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-w.ctx.Done():
		return false
	case <-timer.C:
		return !w.shutdown.Load()
	}
}

func (w *Worker) setConn(conn transport.Conn) {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	w.conn = conn
	// Stop 可能发生在拨号期间
	if conn != nil && w.shutdown.Load() {
		conn.Close()
	}
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
	w.since.Store(w.now().UnixMilli())
	metrics.ConnectorState.WithLabelValues(w.label()).Set(float64(s))

	w.log.Debug("state changed", zap.Stringer("state", s))
	if w.observer != nil {
		w.observer(w.roomID, s)
	}
}

func (w *Worker) label() string {
	return strconv.FormatInt(w.roomID, 10)
}
