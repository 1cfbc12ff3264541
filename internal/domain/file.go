package domain

import "time"

// FileRecord 表示房间文件索引中的一条记录，指向 Blob 存储中的一个对象。
// StorageKey 在整个 Blob 存储范围内唯一 (上传时生成)，数据库层用唯一索引强制该不变量，
// 因此按 key 查找归属房间时最多命中一条记录。
type FileRecord struct {
	ID           uint      `gorm:"primaryKey"`                    // 记录唯一标识符 (主键)
	RoomID       uint      `gorm:"index;not null"`                // 所属房间 ID (外键关联 Room.ID)
	StorageKey   string    `gorm:"uniqueIndex;size:191;not null"` // Blob 存储中的对象 key，全局唯一
	OriginalName string    `gorm:"size:255;not null"`             // 用户上传时的原始文件名，不要求唯一
	FileSize     int64     `gorm:"not null"`                      // 文件大小 (字节)
	UploadTime   time.Time `gorm:"index;not null"`                // 上传时间，清理任务按它计算过期
}

// BlobMetadata 是随 Blob 内容一起保存的旁路元数据。
type BlobMetadata struct {
	OriginalName string `json:"original_name"`
	RoomCode     string `json:"room_code"`
}
