package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/domain"
	"github.com/Ramchandra100/file-share-app/internal/hub"
	"github.com/Ramchandra100/file-share-app/internal/service"
)

// WebSocketHandler 负责 WebSocket 升级和连接注册
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	roomService *service.RoomService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(h *hub.Hub, roomService *service.RoomService) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: 生产环境按 CORS_ALLOWED_ORIGIN 收紧来源检查
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub:         h,
		roomService: roomService,
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 格式: /ws/rooms/:code
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// Hub 按归一化后的房间码组织成员，这里先归一化再注册
	roomCode := domain.NormalizeRoomCode(c.Param("code"))
	logCtx := logrus.WithField("room_code", roomCode)

	// 升级前先验证房间存在，这时还能返回普通 HTTP 错误
	if err := h.roomService.RoomExists(c.Request.Context(), roomCode); err != nil {
		logCtx.WithError(err).Warn("WS handler: room validation failed")
		switch err {
		case service.ErrRoomNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case service.ErrInvalidRoomCode:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room code"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate room"})
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写了 HTTP 错误响应
		logCtx.WithError(err).Error("WS handler: failed to upgrade connection")
		return
	}

	connID := uuid.New().String()
	client := hub.NewClient(h.hub, conn, roomCode, connID)

	registerMsg := hub.HubMessage{Type: "register", Client: client}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS handler: hub message channel full, rejecting connection")
		client.CloseConn()
		return
	}

	client.Run()
	logCtx.WithField("conn_id", connID).Info("WS handler: client connected")
}
