package bridge

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/qiminjie89/danmuji/internal/connector"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"go.uber.org/zap"
)

// HealthStatus 健康状态
type HealthStatus struct {
	Status        string  `json:"status"`
	Rooms         int     `json:"rooms"`
	Streaming     int     `json:"streaming"`
	Clients       int     `json:"clients"`
	Subscribers   int     `json:"subscribers"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// StartRoomRequest 启动房间请求
type StartRoomRequest struct {
	RoomID int64  `json:"room_id"`
	UserID uint64 `json:"user_id"`
}

// StopRoomRequest 停止房间请求
type StopRoomRequest struct {
	RoomID int64 `json:"room_id"`
}

// RoomResponse 房间操作结果
type RoomResponse struct {
	RoomID  int64 `json:"room_id"`
	Changed bool  `json:"changed"` // false 表示房间已在运行 / 不存在
}

// handleHealth 健康检查；有房间但都未连上时返回 503
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rooms := s.rooms.Rooms()

	health := &HealthStatus{
		Status:        "healthy",
		Rooms:         len(rooms),
		Clients:       s.ClientCount(),
		Subscribers:   s.bus.Len(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
	for _, room := range rooms {
		if room.State == connector.StateStreaming.String() {
			health.Streaming++
		}
	}

	code := http.StatusOK
	if health.Rooms > 0 && health.Streaming == 0 {
		health.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

// handleListRooms 列出房间
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.rooms.Rooms())
}

// handleStartRoom 启动房间连接
func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StartRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID <= 0 {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	changed := s.rooms.Start(req.RoomID, req.UserID)
	logger.Info("room start requested",
		zap.Int64("room_id", req.RoomID),
		zap.Bool("changed", changed),
	)
	writeJSON(w, http.StatusOK, RoomResponse{RoomID: req.RoomID, Changed: changed})
}

// handleStopRoom 停止房间连接（等待 worker 退出后返回）
func (s *Server) handleStopRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StopRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID <= 0 {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	changed := s.rooms.Stop(req.RoomID)
	logger.Info("room stop requested",
		zap.Int64("room_id", req.RoomID),
		zap.Bool("changed", changed),
	)
	writeJSON(w, http.StatusOK, RoomResponse{RoomID: req.RoomID, Changed: changed})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
