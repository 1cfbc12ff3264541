package repository

import "errors"

// 通用的存储层错误
var (
	// ErrNotFound 表示请求的记录或对象未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示写入违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrBlobTooLarge 表示写入的对象超过了配置的大小上限
	ErrBlobTooLarge = errors.New("repository: blob exceeds size limit")
)

// 特定资源的错误
var (
	ErrRoomNotFound = ErrNotFound
	ErrFileNotFound = ErrNotFound
	ErrBlobNotFound = ErrNotFound
)
