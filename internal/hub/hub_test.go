package hub // 白盒测试：直接驱动注册/注销路径，不建立真实 WebSocket 连接

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ramchandra100/file-share-app/internal/domain"
	"github.com/Ramchandra100/file-share-app/internal/repository/mocks"
	"github.com/Ramchandra100/file-share-app/internal/service"
)

func newTestHub(t *testing.T) (*Hub, *mocks.RoomRepository) {
	t.Helper()
	mockRoomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(mockRoomRepo)
	return NewHub(roomService), mockRoomRepo
}

// newTestClient 创建不带真实连接的客户端。
// 测试只走注册/广播路径，不会触碰 conn。
func newTestClient(h *Hub, roomCode, connID string) *Client {
	return NewClient(h, nil, roomCode, connID)
}

// receiveEnvelope 从客户端发送队列里取一条消息并解包，超时即失败。
func receiveEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "发送通道不应已关闭")
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("等待客户端消息超时")
		return Envelope{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("不应收到消息，但收到了: %s", raw)
	default:
	}
}

func TestHub_RegisterClient_NotifiesRoomAndReturnsMembers(t *testing.T) {
	// Arrange
	h, _ := newTestHub(t)
	c1 := newTestClient(h, "ABC123", "conn-1")
	c2 := newTestClient(h, "ABC123", "conn-2")

	// Act: 第一个连接注册，房间里没有别人
	h.registerClient(c1)

	// Assert: c1 只收到成员列表
	env := receiveEnvelope(t, c1)
	assert.Equal(t, service.EventRoomMembers, env.Event)
	var members []string
	require.NoError(t, json.Unmarshal(env.Data, &members))
	assert.Equal(t, []string{"conn-1"}, members)
	assertNoMessage(t, c1)

	// Act: 第二个连接注册
	h.registerClient(c2)

	// Assert: c1 收到加入通知 (排除加入者本人)
	env = receiveEnvelope(t, c1)
	assert.Equal(t, service.EventUserJoined, env.Event)
	var joined map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	assert.Equal(t, "conn-2", joined["conn_id"])

	// c2 收到含两个成员的列表，但不收到自己的加入通知
	env = receiveEnvelope(t, c2)
	assert.Equal(t, service.EventRoomMembers, env.Event)
	require.NoError(t, json.Unmarshal(env.Data, &members))
	assert.Len(t, members, 2)
	assertNoMessage(t, c2)

	assert.ElementsMatch(t, []string{"conn-1", "conn-2"}, h.RoomMembers("ABC123"))
}

func TestHub_UnregisterClient_NotifiesRemaining(t *testing.T) {
	// Arrange
	h, _ := newTestHub(t)
	c1 := newTestClient(h, "ABC123", "conn-1")
	c2 := newTestClient(h, "ABC123", "conn-2")
	h.registerClient(c1)
	h.registerClient(c2)
	// 清掉注册阶段的消息
	receiveEnvelope(t, c1)
	receiveEnvelope(t, c1)
	receiveEnvelope(t, c2)

	// Act
	h.unregisterClient(c1)

	// Assert: c2 收到离开通知，成员表只剩 c2
	env := receiveEnvelope(t, c2)
	assert.Equal(t, service.EventUserLeft, env.Event)
	var left map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &left))
	assert.Equal(t, "conn-1", left["conn_id"])
	assert.Equal(t, []string{"conn-2"}, h.RoomMembers("ABC123"))

	// 注销后的连接不再接收广播
	assert.False(t, c1.trySend([]byte("x")))

	// 重复注销是无害的
	h.unregisterClient(c1)
	assertNoMessage(t, c2)
}

func TestHub_BroadcastToRoom_DoesNotCrossRooms(t *testing.T) {
	// Arrange: 两个房间各一个连接
	h, _ := newTestHub(t)
	c1 := newTestClient(h, "AAAAAA", "conn-1")
	c2 := newTestClient(h, "BBBBBB", "conn-2")
	h.registerClient(c1)
	h.registerClient(c2)
	receiveEnvelope(t, c1)
	receiveEnvelope(t, c2)

	// Act
	h.BroadcastToRoom("AAAAAA", service.EventNewFiles, []string{"k1"}, "")

	// Assert
	env := receiveEnvelope(t, c1)
	assert.Equal(t, service.EventNewFiles, env.Event)
	assertNoMessage(t, c2)
}

func TestHub_BroadcastToRoom_ExcludesConn(t *testing.T) {
	// Arrange
	h, _ := newTestHub(t)
	c1 := newTestClient(h, "ABC123", "conn-1")
	c2 := newTestClient(h, "ABC123", "conn-2")
	h.registerClient(c1)
	h.registerClient(c2)
	receiveEnvelope(t, c1)
	receiveEnvelope(t, c1)
	receiveEnvelope(t, c2)

	// Act: 排除 conn-1 (文字更新不回显给作者)
	h.BroadcastToRoom("ABC123", service.EventReceiveText, map[string]string{"content": "hi"}, "conn-1")

	// Assert
	assertNoMessage(t, c1)
	env := receiveEnvelope(t, c2)
	assert.Equal(t, service.EventReceiveText, env.Event)
}

func TestHub_BroadcastGlobal_ReachesAllRooms(t *testing.T) {
	// Arrange
	h, _ := newTestHub(t)
	c1 := newTestClient(h, "AAAAAA", "conn-1")
	c2 := newTestClient(h, "BBBBBB", "conn-2")
	h.registerClient(c1)
	h.registerClient(c2)
	receiveEnvelope(t, c1)
	receiveEnvelope(t, c2)

	// Act
	h.BroadcastGlobal(service.EventAllFilesCleared, nil)

	// Assert: 两个房间的连接都收到
	assert.Equal(t, service.EventAllFilesCleared, receiveEnvelope(t, c1).Event)
	assert.Equal(t, service.EventAllFilesCleared, receiveEnvelope(t, c2).Event)
}

func TestHub_Run_ProcessesQueuedRegister(t *testing.T) {
	// Arrange: 通过消息队列走完整的注册路径
	h, _ := newTestHub(t)
	go h.Run()
	defer h.Stop()

	c1 := newTestClient(h, "ABC123", "conn-1")

	// Act
	require.True(t, h.QueueMessage(HubMessage{Type: "register", Client: c1}))

	// Assert
	env := receiveEnvelope(t, c1)
	assert.Equal(t, service.EventRoomMembers, env.Event)
}

func TestHub_Run_TextFrame_PersistsAndBroadcastsExcludingAuthor(t *testing.T) {
	// Arrange
	h, mockRoomRepo := newTestHub(t)
	go h.Run()
	defer h.Stop()

	author := newTestClient(h, "ABC123", "conn-author")
	listener := newTestClient(h, "ABC123", "conn-listener")
	h.registerClient(author)
	h.registerClient(listener)
	receiveEnvelope(t, author)
	receiveEnvelope(t, author)
	receiveEnvelope(t, listener)

	appended := make(chan struct{})
	mockRoomRepo.On("AppendText", mock.Anything, "ABC123", mock.MatchedBy(func(rev *domain.TextRevision) bool {
		return rev.Content == "shared note" && rev.AddedBy == "conn-author"
	})).
		Run(func(_ mock.Arguments) { close(appended) }).
		Return(nil).Once()

	frame := []byte(`{"event":"send text","data":{"content":"shared note"}}`)

	// Act
	require.True(t, h.QueueMessage(HubMessage{Type: "frame", Client: author, RawData: frame}))

	// Assert: 持久化发生，旁听者收到广播，作者自己不收
	select {
	case <-appended:
	case <-time.After(time.Second):
		t.Fatal("等待文字持久化超时")
	}
	env := receiveEnvelope(t, listener)
	assert.Equal(t, service.EventReceiveText, env.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "shared note", payload["content"])
	assert.Equal(t, "conn-author", payload["added_by"])
	assertNoMessage(t, author)

	mockRoomRepo.AssertExpectations(t)
}

func TestHub_SlowClientDoesNotBlockBroadcast(t *testing.T) {
	// Arrange: 塞满一个连接的发送队列
	h, _ := newTestHub(t)
	slow := newTestClient(h, "ABC123", "conn-slow")
	fast := newTestClient(h, "ABC123", "conn-fast")
	h.registerClient(slow)
	h.registerClient(fast)
	for {
		if !slow.trySend([]byte("filler")) {
			break
		}
	}

	// Act: 广播不应被慢连接卡住
	done := make(chan struct{})
	go func() {
		h.BroadcastToRoom("ABC123", service.EventNewFiles, nil, "")
		close(done)
	}()

	// Assert
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("广播被慢连接阻塞")
	}
}

func TestEnvelope_MarshalRoundTrip(t *testing.T) {
	raw, err := marshalEnvelope(service.EventFileDeleted, map[string]string{"storage_key": "k1"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, service.EventFileDeleted, env.Event)

	// payload 为 nil 时 data 字段省略
	raw, err = marshalEnvelope(service.EventAllFilesCleared, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "data")
}
