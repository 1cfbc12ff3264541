package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/service"
)

// RoomHandler 封装房间相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// JoinRoomRequest 定义加入房间请求的结构体
type JoinRoomRequest struct {
	RoomCode string `json:"room_code" binding:"required"`
}

// JoinRoom 处理加入 (或创建) 房间的请求
// POST /api/rooms/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "room_code is required")
		return
	}

	view, err := h.roomService.CreateOrJoin(c.Request.Context(), req.RoomCode)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("room_code", view.RoomCode).Info("Room joined via HTTP")
	SuccessResponse(c, http.StatusOK, view)
}

// GetRoom 返回房间视图 (管理员聚合房间返回全量文件并集)
// GET /api/rooms/:code
func (h *RoomHandler) GetRoom(c *gin.Context) {
	view, err := h.roomService.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view)
}
