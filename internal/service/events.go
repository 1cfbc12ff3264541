package service

// Notifier 是服务层面向实时推送的端口，由 Hub 实现。
// excludeConnID 非空时，该连接不会收到这次房间广播 (例如文字编辑不回显给作者)。
type Notifier interface {
	BroadcastToRoom(roomCode string, event string, payload interface{}, excludeConnID string)
	BroadcastGlobal(event string, payload interface{})
}

// 推送给客户端的事件名。
const (
	EventNewFiles        = "new files"
	EventFileDeleted     = "file deleted"
	EventAllFilesCleared = "all files cleared"
	EventFilesExpired    = "files expired"
	EventReceiveText     = "receive text"
	EventUserJoined      = "user joined"
	EventUserLeft        = "user left"
	EventRoomMembers     = "room members"
)
