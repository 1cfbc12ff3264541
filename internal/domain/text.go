package domain

import "time"

// TextRevision 表示房间共享文字的一次修改记录。
// 只追加、不删除：当前文字永远是最后一条的内容，更早的条目保留为历史。
// 注意这是一个无上限增长的日志，生产环境应考虑截断或压缩 (已知限制，按现有语义保留)。
type TextRevision struct {
	ID      uint      `gorm:"primaryKey"`     // 记录唯一标识符 (主键)
	RoomID  uint      `gorm:"index;not null"` // 所属房间 ID (外键关联 Room.ID)
	Content string    `gorm:"type:text"`      // 文字内容，大小不限
	AddedBy string    `gorm:"size:64"`        // 提交者的连接标识 (不透明字符串)
	AddedAt time.Time `gorm:"index;not null"` // 提交时间
}
