package service

import "errors"

// 业务层错误分类，对应对外的失败语义。
// Handler 层用 errors.Is 把它们映射到 HTTP 状态码。
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrUnauthorized    = errors.New("operation not authorized for this room code")
	ErrPayloadTooLarge = errors.New("file exceeds the size limit")
	ErrStorageFailure  = errors.New("storage operation failed")
	ErrInternalServer  = errors.New("internal server error")
)
