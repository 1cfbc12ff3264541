package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ramchandra100/file-share-app/internal/domain"
	"github.com/Ramchandra100/file-share-app/internal/repository"
	"github.com/Ramchandra100/file-share-app/internal/repository/mocks"
	"github.com/Ramchandra100/file-share-app/internal/service"
)

// setupRouter 用 Mock 存储层搭一个完整的路由，不需要数据库
func setupRouter(t *testing.T) (*gin.Engine, *mocks.RoomRepository, *mocks.BlobStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockRoomRepo := new(mocks.RoomRepository)
	mockBlobs := new(mocks.BlobStore)
	mockNotifier := new(mocks.Notifier)
	// 广播在 handler 测试里不是被验证的主角，一律放行
	mockNotifier.On("BroadcastToRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	mockNotifier.On("BroadcastGlobal", mock.Anything, mock.Anything).Maybe()

	roomService := service.NewRoomService(mockRoomRepo)
	transferService := service.NewTransferService(mockRoomRepo, mockBlobs, mockNotifier, 1024)
	roomHandler := NewRoomHandler(roomService)
	fileHandler := NewFileHandler(transferService)

	router := gin.New()
	api := router.Group("/api")
	{
		api.POST("/rooms/join", roomHandler.JoinRoom)
		api.GET("/rooms/:code", roomHandler.GetRoom)
		api.POST("/rooms/:code/files", fileHandler.Upload)
		api.DELETE("/rooms/:code/files/:key", fileHandler.Delete)
		api.POST("/rooms/:code/clear", fileHandler.BulkClear)
		api.GET("/files/:key", fileHandler.Download)
	}
	return router, mockRoomRepo, mockBlobs
}

func TestJoinRoom_Success(t *testing.T) {
	// Arrange
	router, mockRoomRepo, _ := setupRouter(t)
	room := &domain.Room{ID: 1, RoomCode: "ABC123"}
	mockRoomRepo.On("FindOrCreate", mock.Anything, "ABC123").Return(room, nil).Once()

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/rooms/join", strings.NewReader(`{"room_code":"abc123"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var view service.RoomView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "ABC123", view.RoomCode)
	mockRoomRepo.AssertExpectations(t)
}

func TestJoinRoom_MissingBody(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/rooms/join", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoom_NotFound(t *testing.T) {
	router, mockRoomRepo, _ := setupRouter(t)
	mockRoomRepo.On("FindByCode", mock.Anything, "ZZZZZZ").Return(nil, repository.ErrRoomNotFound).Once()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/rooms/ZZZZZZ", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// buildMultipart 构造带若干文件的 multipart 请求体
func buildMultipart(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUpload_Success(t *testing.T) {
	// Arrange
	router, mockRoomRepo, mockBlobs := setupRouter(t)
	mockRoomRepo.On("FindByCode", mock.Anything, "ABC123").Return(&domain.Room{ID: 1, RoomCode: "ABC123"}, nil).Once()
	mockBlobs.On("Put", mock.Anything, mock.AnythingOfType("string"), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// 内容应流式到达 Blob 存储
			data, err := io.ReadAll(args.Get(2).(io.Reader))
			require.NoError(t, err)
			assert.Equal(t, "hello upload", string(data))
		}).
		Return(int64(12), nil).Once()
	mockRoomRepo.On("AppendFile", mock.Anything, "ABC123", mock.AnythingOfType("*domain.FileRecord")).Return(nil).Once()

	body, contentType := buildMultipart(t, map[string]string{"a.txt": "hello upload"})

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/rooms/ABC123/files", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var result service.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Committed, 1)
	assert.Equal(t, "a.txt", result.Committed[0].OriginalName)
	mockBlobs.AssertExpectations(t)
}

func TestUpload_AllFilesTooLarge(t *testing.T) {
	// Arrange: multipart 头里声明的大小就超限，整个操作应返回 413
	router, mockRoomRepo, mockBlobs := setupRouter(t)
	mockRoomRepo.On("FindByCode", mock.Anything, "ABC123").Return(&domain.Room{ID: 1, RoomCode: "ABC123"}, nil).Once()

	body, contentType := buildMultipart(t, map[string]string{
		"big.bin": strings.Repeat("x", 2048), // 服务配置的上限是 1024
	})

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/rooms/ABC123/files", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	mockBlobs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpload_NoFiles(t *testing.T) {
	router, _, _ := setupRouter(t)
	body, contentType := buildMultipart(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/rooms/ABC123/files", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownload_SetsAttachmentFilename(t *testing.T) {
	// Arrange
	router, mockRoomRepo, mockBlobs := setupRouter(t)
	key := "123-uuid-a.txt"
	record := &domain.FileRecord{ID: 1, StorageKey: key, OriginalName: "a.txt", FileSize: 5}
	mockRoomRepo.On("FindFileByKey", mock.Anything, key).Return(record, &domain.Room{ID: 1}, nil).Once()
	mockBlobs.On("Get", mock.Anything, key).Return(io.NopCloser(strings.NewReader("hello")), int64(5), nil).Once()

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/files/"+key, nil)
	router.ServeHTTP(w, req)

	// Assert: 原始文件名放在 Content-Disposition 里
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="a.txt"`)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
}

func TestDownload_NotFound(t *testing.T) {
	router, mockRoomRepo, mockBlobs := setupRouter(t)
	mockRoomRepo.On("FindFileByKey", mock.Anything, "gone").Return(nil, nil, repository.ErrFileNotFound).Once()
	mockBlobs.On("Get", mock.Anything, "gone").Return(nil, int64(0), repository.ErrBlobNotFound).Once()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/files/gone", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete_Success(t *testing.T) {
	router, mockRoomRepo, mockBlobs := setupRouter(t)
	mockBlobs.On("Delete", mock.Anything, "k1").Return(nil).Once()
	mockRoomRepo.On("RemoveFile", mock.Anything, "ABC123", "k1").Return(nil).Once()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/rooms/ABC123/files/k1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRoomRepo.AssertExpectations(t)
}

func TestBulkClear_ForbiddenForNormalRoom(t *testing.T) {
	router, _, mockBlobs := setupRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/rooms/ABC123/clear", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockBlobs.AssertNotCalled(t, "DropAll", mock.Anything)
}

func TestBulkClear_AdminSucceeds(t *testing.T) {
	router, mockRoomRepo, mockBlobs := setupRouter(t)
	mockBlobs.On("DropAll", mock.Anything).Return(nil).Once()
	mockRoomRepo.On("ClearAllFiles", mock.Anything).Return(nil).Once()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/rooms/ADMIN/clear", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockBlobs.AssertExpectations(t)
}
