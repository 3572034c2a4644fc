package domain

import (
	"time"
)

// Mailbox 表示临时邮箱的业务实体。
//
// 地址在规范化后全局唯一；只有在 ExpiresAt 之前，邮箱才会被视为有效的收件人。
type Mailbox struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"`
	Address      string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	ExpiresAt    time.Time `gorm:"index;not null"`
	LastAccessed time.Time
	IPAddress    string `gorm:"type:varchar(64)"`
}

// IsLive 判断邮箱在 now 时刻是否仍然有效。
func (m *Mailbox) IsLive(now time.Time) bool {
	return now.Before(m.ExpiresAt)
}
