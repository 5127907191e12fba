package bridge

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/qiminjie89/danmuji/internal/protocol"
	"github.com/qiminjie89/danmuji/pkg/auth"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"github.com/qiminjie89/danmuji/pkg/metrics"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // 本地 UI / OBS 浏览器源
	},
}

// handleWebSocket 处理 UI 客户端连接
//
// 查询参数：format=json|msgpack，room=<房间号>，token=<JWT>
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, err := protocol.ParseFormat(q.Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var roomID int64
	if v := q.Get("room"); v != "" {
		roomID, err = strconv.ParseInt(v, 10, 64)
		if err != nil || roomID <= 0 {
			http.Error(w, "invalid room", http.StatusBadRequest)
			return
		}
	}

	clientName, status, err := s.authorize(q.Get("token"), roomID)
	if err != nil {
		logger.Warn("bridge authorization failed",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		http.Error(w, err.Error(), status)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	client := &Client{
		ID:               clientID,
		RoomID:           roomID,
		ws:               ws,
		sub:              s.bus.Subscribe("bridge-" + clientID),
		format:           format,
		heartbeatTimeout: s.cfg.HeartbeatTimeout,
		writeTimeout:     s.cfg.WriteTimeout,
		closeCh:          make(chan struct{}),
		server:           s,
	}
	s.addClient(client)
	metrics.BridgeClients.Inc()

	logger.Info("bridge client connected",
		zap.String("client_id", clientID),
		zap.String("client_name", clientName),
		zap.Int64("room_id", roomID),
		zap.String("format", string(format)),
		zap.String("remote_addr", r.RemoteAddr),
	)

	client.Start()
}

// authorize 未配置密钥时不校验
func (s *Server) authorize(token string, roomID int64) (string, int, error) {
	if s.validator == nil {
		return "", http.StatusOK, nil
	}
	if token == "" {
		return "", http.StatusUnauthorized, auth.ErrInvalidToken
	}

	claims, err := s.validator.Validate(token)
	if err != nil {
		return "", http.StatusUnauthorized, err
	}
	if !claims.AllowsRoom(roomID) {
		return "", http.StatusForbidden, auth.ErrRoomDenied
	}
	return claims.ClientName, http.StatusOK, nil
}
