package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/service"
)

// multipart 表单里文件字段的名字
const uploadFieldName = "files"

// FileHandler 封装文件上传、下载、删除和全局清空的 HTTP 处理逻辑
type FileHandler struct {
	transferService *service.TransferService
}

// NewFileHandler 创建 FileHandler 实例
func NewFileHandler(transferService *service.TransferService) *FileHandler {
	if transferService == nil {
		panic("TransferService cannot be nil for FileHandler")
	}
	return &FileHandler{transferService: transferService}
}

// Upload 处理批量文件上传
// POST /api/rooms/:code/files  (multipart/form-data, 字段名 "files")
// 超过内存阈值的 part 由 multipart 层落盘暂存，文件内容始终流式进入 Blob 存储。
func (h *FileHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := form.File[uploadFieldName]
	if len(headers) == 0 {
		ErrorResponse(c, http.StatusBadRequest, "no files in request")
		return
	}

	inputs := make([]service.UploadInput, 0, len(headers))
	var openFailed []service.UploadFailure
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			logrus.WithError(err).WithField("file_name", fh.Filename).Warn("Failed to open multipart file")
			openFailed = append(openFailed, service.UploadFailure{Name: fh.Filename, Reason: "unreadable upload"})
			continue
		}
		defer f.Close()
		inputs = append(inputs, service.UploadInput{
			Name:   fh.Filename,
			Size:   fh.Size,
			Reader: f,
		})
	}

	result, err := h.transferService.UploadFiles(c.Request.Context(), c.Param("code"), inputs)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	result.Failed = append(result.Failed, openFailed...)

	status := http.StatusOK
	if len(result.Committed) == 0 && len(result.Failed) > 0 {
		status = http.StatusBadGateway
	}
	SuccessResponse(c, status, result)
}

// Download 按存储 key 流式返回文件内容
// GET /api/files/:key
func (h *FileHandler) Download(c *gin.Context) {
	result, err := h.transferService.Download(c.Request.Context(), c.Param("key"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	defer result.Reader.Close()

	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", result.Filename),
	}
	c.DataFromReader(http.StatusOK, result.Size, "application/octet-stream", result.Reader, extraHeaders)
}

// Delete 删除房间内的一个文件
// DELETE /api/rooms/:code/files/:key
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.transferService.DeleteFile(c.Request.Context(), c.Param("code"), c.Param("key")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "file deleted"})
}

// BulkClear 全局清空所有房间的文件，仅管理员聚合房间码可用
// POST /api/rooms/:code/clear
func (h *FileHandler) BulkClear(c *gin.Context) {
	if err := h.transferService.BulkClear(c.Request.Context(), c.Param("code")); err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithField("room_code", c.Param("code")).Warn("Bulk clear executed")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "all files cleared"})
}
