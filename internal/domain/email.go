package domain

import "time"

// Email 表示一封已入库的邮件。
//
// 除 IsRead 标记和删除之外，入库后不再修改。
type Email struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	MailboxID      string `gorm:"type:varchar(36);index;not null"`
	FromAddress    string `gorm:"type:varchar(255)"`
	FromName       string `gorm:"type:varchar(255)"`
	ToAddress      string `gorm:"type:varchar(255)"`
	Subject        string `gorm:"type:varchar(998)"`
	TextContent    string
	HTMLContent    string
	HasAttachments bool      `gorm:"default:false"`
	ReceivedAt     time.Time `gorm:"index;not null"`
	IsRead         bool      `gorm:"default:false"`
}
