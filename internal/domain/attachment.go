package domain

import "time"

// Attachment 表示邮件附件。
//
// Content 保存 base64 编码后的内容；Size 是原始内容的字节数，不是编码后的长度。
type Attachment struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	EmailID   string `gorm:"type:varchar(36);index;not null"`
	Filename  string `gorm:"type:varchar(255)"`
	MimeType  string `gorm:"type:varchar(255)"`
	Content   string
	Size      int64
	CreatedAt time.Time
}
