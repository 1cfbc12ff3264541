package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	// 共享文字随消息走，所以上限放得比控制消息大。
	maxMessageSize = 64 * 1024
)

// 客户端发来的事件名
const (
	clientEventSendText = "send text"
	clientEventLeave    = "leave room"
)

// Envelope 是 WebSocket 双向消息的统一外层结构。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// HubMessage 定义了 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string  // "register", "unregister", "frame"
	Client  *Client // 消息关联的连接
	RawData []byte  // 仅用于 frame (原始 WebSocket 消息)
}

// Hub 维护活跃连接集合并负责事件扇出。
// 成员表只存在于内存中，完全由活跃连接重建，进程重启后清零；
// 文件归属的权威数据始终在房间存储里。
// Hub 由进程启动时显式构造，以句柄传给需要广播的组件，没有包级全局状态。
type Hub struct {
	// 内部通道，处理所有来自连接的事件
	messageChan chan HubMessage
	done        chan struct{}
	closeOnce   sync.Once

	// 连接集合，按房间码组织
	// map[roomCode]map[*Client]bool
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	// 注入的 Service，处理文字更新的业务逻辑
	roomService *service.RoomService
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(roomService *service.RoomService) *Hub {
	if roomService == nil {
		panic("RoomService cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		done:        make(chan struct{}),
		rooms:       make(map[string]map[*Client]bool),
		roomService: roomService,
	}
}

// Run 启动 Hub 的主事件处理循环，应在单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(msg.Client)
			case "frame":
				// 异步处理客户端消息，避免数据库 IO 阻塞 Hub 主循环
				go h.handleClientFrame(msg)
			default:
				log.Warnf("Received unknown message type: %s", msg.Type)
			}
		case <-h.done:
			log.Info("Hub is shutting down...")
			return
		}
	}
}

// Stop 让 Run 循环退出。连接侧仍可向消息通道投递，消息会被丢弃在缓冲里，
// 不会 panic。
func (h *Hub) Stop() {
	h.closeOnce.Do(func() { close(h.done) })
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 false 表示队列已满，消息被丢弃。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// registerClient 把连接加入其房间：
// 通知已有成员有人加入，并把当前成员列表回给新连接。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": client.RoomCode(),
		"conn_id":   client.ConnID(),
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.RoomCode()]; !ok {
		h.rooms[client.RoomCode()] = make(map[*Client]bool)
	}
	h.rooms[client.RoomCode()][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to hub")

	h.BroadcastToRoom(client.RoomCode(), service.EventUserJoined,
		map[string]string{"conn_id": client.ConnID()}, client.ConnID())

	// 成员列表直接回给新连接
	if payload, err := marshalEnvelope(service.EventRoomMembers, h.RoomMembers(client.RoomCode())); err == nil {
		client.trySend(payload)
	} else {
		logCtx.WithError(err).Error("Failed to marshal member list")
	}
}

// unregisterClient 把连接从房间移除并通知剩余成员。
// 连接异常断开时走的也是这条路径，客户端无需显式 leave。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": client.RoomCode(),
		"conn_id":   client.ConnID(),
	})

	removed := false
	h.roomsMu.Lock()
	if roomClients, ok := h.rooms[client.RoomCode()]; ok {
		if _, exists := roomClients[client]; exists {
			delete(roomClients, client)
			client.closeSend()
			removed = true
			if len(roomClients) == 0 {
				delete(h.rooms, client.RoomCode())
			}
		}
	}
	h.roomsMu.Unlock()

	if removed {
		logCtx.Info("Client unregistered from hub")
		h.BroadcastToRoom(client.RoomCode(), service.EventUserLeft,
			map[string]string{"conn_id": client.ConnID()}, client.ConnID())
	}
}

// handleClientFrame 处理客户端发来的一条消息。
func (h *Hub) handleClientFrame(msg HubMessage) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": msg.Client.RoomCode(),
		"conn_id":   msg.Client.ConnID(),
	})

	var envelope Envelope
	if err := json.Unmarshal(msg.RawData, &envelope); err != nil {
		logCtx.WithError(err).Warn("Dropping malformed client frame")
		return
	}

	switch envelope.Event {
	case clientEventSendText:
		h.handleTextUpdate(msg.Client, envelope.Data, logCtx)
	case clientEventLeave:
		// 连接与房间一一绑定，离开房间即关闭连接，
		// 清理走统一的断开路径
		msg.Client.CloseConn()
	default:
		logCtx.WithField("event", envelope.Event).Warn("Unknown client event")
	}
}

// handleTextUpdate 持久化文字更新并广播给房间内除作者外的成员。
func (h *Hub) handleTextUpdate(client *Client, data json.RawMessage, logCtx *logrus.Entry) {
	var payload struct {
		Content string `json:"content"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			logCtx.WithError(err).Warn("Dropping malformed text update")
			return
		}
	}

	// 使用后台 context：持久化不应随客户端断开被取消
	revision, err := h.roomService.UpdateText(context.Background(), client.RoomCode(), payload.Content, client.ConnID())
	if err != nil {
		logCtx.WithError(err).Error("Text update failed")
		return
	}

	h.BroadcastToRoom(client.RoomCode(), service.EventReceiveText, map[string]string{
		"content":  revision.Content,
		"added_by": revision.AddedBy,
	}, client.ConnID())
}

// BroadcastToRoom 把事件发给房间内所有成员，excludeConnID 非空时跳过该连接。
// 单个慢连接不会阻塞广播：发送通道满时丢弃并记警告。
func (h *Hub) BroadcastToRoom(roomCode, event string, payload interface{}, excludeConnID string) {
	message, err := marshalEnvelope(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to marshal broadcast payload")
		return
	}

	h.roomsMu.RLock()
	roomClients := h.rooms[roomCode]
	clientsToSend := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		if excludeConnID != "" && client.ConnID() == excludeConnID {
			continue
		}
		clientsToSend = append(clientsToSend, client)
	}
	h.roomsMu.RUnlock()

	for _, client := range clientsToSend {
		if !client.trySend(message) {
			logrus.WithFields(logrus.Fields{
				"room_code": roomCode,
				"conn_id":   client.ConnID(),
				"event":     event,
			}).Warn("Client send channel full during broadcast, skipping")
		}
	}
}

// BroadcastGlobal 把事件发给所有连接，不论房间。
// 只用于全局清空和过期清理这类跨房间通知。
func (h *Hub) BroadcastGlobal(event string, payload interface{}) {
	message, err := marshalEnvelope(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to marshal broadcast payload")
		return
	}

	h.roomsMu.RLock()
	var clientsToSend []*Client
	for _, roomClients := range h.rooms {
		for client := range roomClients {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.roomsMu.RUnlock()

	for _, client := range clientsToSend {
		if !client.trySend(message) {
			logrus.WithFields(logrus.Fields{
				"conn_id": client.ConnID(),
				"event":   event,
			}).Warn("Client send channel full during global broadcast, skipping")
		}
	}
}

// RoomMembers 返回房间当前成员的连接 ID 列表。
func (h *Hub) RoomMembers(roomCode string) []string {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	members := make([]string, 0, len(h.rooms[roomCode]))
	for client := range h.rooms[roomCode] {
		members = append(members, client.ConnID())
	}
	return members
}

func marshalEnvelope(event string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
