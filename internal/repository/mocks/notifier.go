package mocks

import (
	"github.com/stretchr/testify/mock"
)

// Notifier 是 service.Notifier 的 Mock 实现，供单元测试使用。
type Notifier struct {
	mock.Mock
}

func (m *Notifier) BroadcastToRoom(roomCode string, event string, payload interface{}, excludeConnID string) {
	m.Called(roomCode, event, payload, excludeConnID)
}

func (m *Notifier) BroadcastGlobal(event string, payload interface{}) {
	m.Called(event, payload)
}
