// Package connector 管理到直播平台的房间连接
//
// 每个房间一个 Worker（读循环 + 心跳），所有 Worker 把事件发布到同一条总线。
package connector

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/pkg/config"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"github.com/qiminjie89/danmuji/pkg/metrics"
	"github.com/qiminjie89/danmuji/pkg/transport"
	"go.uber.org/zap"
)

// 默认时间参数
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
)

// RoomStatus 房间连接状态快照
type RoomStatus struct {
	RoomID int64     `json:"room_id"`
	UserID uint64    `json:"user_id"`
	State  string    `json:"state"`
	Since  time.Time `json:"since"`
}

// Connector 房间连接注册表
type Connector struct {
	cfg    *config.ConnectorConfig
	dialer transport.Dialer
	bus    *bus.Bus

	observer Observer

	mu      sync.Mutex
	workers map[int64]*Worker
}

// New 创建 Connector
func New(cfg *config.ConnectorConfig, dialer transport.Dialer, b *bus.Bus) *Connector {
	c := *cfg
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.ReconnectDelay < 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	return &Connector{
		cfg:     &c,
		dialer:  dialer,
		bus:     b,
		workers: make(map[int64]*Worker),
	}
}

// SetObserver 设置状态回调，只影响之后启动的 worker
func (c *Connector) SetObserver(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// Bus 返回事件总线
func (c *Connector) Bus() *bus.Bus {
	return c.bus
}

// Start 启动房间连接，已存在时不做任何事并返回 false
func (c *Connector) Start(roomID int64, userID uint64) bool {
	c.mu.Lock()
	if _, ok := c.workers[roomID]; ok {
		c.mu.Unlock()
		return false
	}
	w := NewWorker(roomID, userID, c.cfg, c.dialer, c.bus, c.observer)
	c.workers[roomID] = w
	metrics.ConnectorRooms.Set(float64(len(c.workers)))
	c.mu.Unlock()

	go w.Run()

	logger.Info("room started",
		zap.Int64("room_id", roomID),
		zap.Uint64("user_id", userID),
	)
	return true
}

// Stop 停止房间连接并等待 worker 退出，不存在时返回 false
func (c *Connector) Stop(roomID int64) bool {
	c.mu.Lock()
	w, ok := c.workers[roomID]
	c.mu.Unlock()
	if !ok {
		return false
	}

	w.Stop()
	<-w.Done()

	c.mu.Lock()
	if c.workers[roomID] == w {
		delete(c.workers, roomID)
	}
	metrics.ConnectorRooms.Set(float64(len(c.workers)))
	c.mu.Unlock()

	metrics.ConnectorState.DeleteLabelValues(w.label())
	logger.Info("room stopped", zap.Int64("room_id", roomID))
	return true
}

// ShutdownAll 停止所有房间并等待退出
func (c *Connector) ShutdownAll() {
	c.mu.Lock()
	workers := make([]*Worker, 0, len(c.workers))
	for _, w := range c.workers {
		workers = append(workers, w)
	}
	c.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	for _, w := range workers {
		<-w.Done()
	}

	c.mu.Lock()
	for _, w := range workers {
		if c.workers[w.roomID] == w {
			delete(c.workers, w.roomID)
		}
		metrics.ConnectorState.DeleteLabelValues(w.label())
	}
	metrics.ConnectorRooms.Set(float64(len(c.workers)))
	c.mu.Unlock()

	logger.Info("all rooms stopped", zap.Int("count", len(workers)))
}

// Rooms 返回按房间号排序的状态列表
func (c *Connector) Rooms() []RoomStatus {
	c.mu.Lock()
	rooms := make([]RoomStatus, 0, len(c.workers))
	for _, w := range c.workers {
		rooms = append(rooms, RoomStatus{
			RoomID: w.roomID,
			UserID: w.userID,
			State:  w.State().String(),
			Since:  w.Since(),
		})
	}
	c.mu.Unlock()

	slices.SortFunc(rooms, func(a, b RoomStatus) int {
		return cmp.Compare(a.RoomID, b.RoomID)
	})
	return rooms
}

// Has 房间是否在运行
func (c *Connector) Has(roomID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.workers[roomID]
	return ok
}
