package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 连接。
// 一个连接同一时间最多属于一个房间，由升级时的房间码决定。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	roomCode string
	connID   string

	send     chan []byte // 发往此连接的缓冲通道，保证单连接内的事件有序
	sendMu   sync.RWMutex
	sendDone bool
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, roomCode, connID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		roomCode: roomCode,
		connID:   connID,
		send:     make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) RoomCode() string { return c.roomCode }
func (c *Client) ConnID() string   { return c.connID }
func (c *Client) CloseConn()       { c.conn.Close() }

// trySend 非阻塞地向连接的发送队列投递消息。
// 队列已满或连接已注销时返回 false。
func (c *Client) trySend(message []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendDone {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeSend 关闭发送通道，让 WritePump 退出。只能由 Hub 的注销路径调用。
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendDone {
		c.sendDone = true
		close(c.send)
	}
}

// ReadPump 把消息从 WebSocket 连接泵送到 Hub 的处理通道。
// 退出时请求 Hub 注销此连接，所以异常断开不需要客户端发 leave。
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: "unregister", Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logrus.WithFields(logrus.Fields{"conn_id": c.connID, "room_code": c.roomCode}).
				Warn("Timeout sending unregister message to hub channel")
		}
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"conn_id": c.connID, "room_code": c.roomCode}).
			Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"conn_id": c.connID, "room_code": c.roomCode})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}
		frameMsg := HubMessage{Type: "frame", Client: c, RawData: message}
		select {
		case c.hub.messageChan <- frameMsg:
		default:
			logrus.WithFields(logrus.Fields{"conn_id": c.connID, "room_code": c.roomCode}).
				Warn("Hub message channel full, dropping client message")
		}
	}
}

// WritePump 把消息从发送通道泵送到 WebSocket 连接，并定期发 ping 保活。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 已注销此连接
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{"conn_id": c.connID, "room_code": c.roomCode}).
					WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
