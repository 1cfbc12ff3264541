package domain

import "time"

// Room 表示一个共享房间，按房间码唯一标识。
// 房间在第一次 join/create 时惰性创建，文件索引和文字记录都挂在它下面。
type Room struct {
	ID        uint      `gorm:"primaryKey"`                    // 房间唯一标识符 (主键)
	RoomCode  string    `gorm:"uniqueIndex;size:191;not null"` // 房间码，统一大写存储，必须唯一
	CreatedAt time.Time `gorm:"autoCreateTime"`                // 房间创建时间 (GORM 自动填充)

	// 关联集合，由 Repository 显式 Preload
	Files []FileRecord   `gorm:"foreignKey:RoomID"`
	Texts []TextRevision `gorm:"foreignKey:RoomID"`
}

// CurrentText 返回房间当前可见的共享文字，即最后一条 TextRevision 的内容。
// 历史记录只追加不展示，没有任何记录时返回空字符串。
func (r *Room) CurrentText() string {
	if len(r.Texts) == 0 {
		return ""
	}
	return r.Texts[len(r.Texts)-1].Content
}
