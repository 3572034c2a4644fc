package security

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Content-Disposition 类型
const (
	DispositionInline     = "inline"
	DispositionAttachment = "attachment"
)

// AttachmentPolicy 决定附件下载时能否在浏览器内直接打开
//
// 声明类型和实际内容都属于安全类型时才允许 inline，其余一律以 attachment 方式下载。
type AttachmentPolicy struct {
	// 允许直接打开的 MIME 类型
	inlineMimeTypes map[string]bool

	// 危险文件扩展名
	dangerousExtensions map[string]bool
}

// NewAttachmentPolicy 创建附件下载策略
func NewAttachmentPolicy() *AttachmentPolicy {
	return &AttachmentPolicy{
		inlineMimeTypes: map[string]bool{
			"text/plain":      true,
			"application/pdf": true,
			"image/jpeg":      true,
			"image/png":       true,
			"image/gif":       true,
			"image/webp":      true,
		},
		dangerousExtensions: map[string]bool{
			".exe":  true,
			".bat":  true,
			".cmd":  true,
			".scr":  true,
			".pif":  true,
			".com":  true,
			".vbs":  true,
			".js":   true,
			".jar":  true,
			".php":  true,
			".asp":  true,
			".jsp":  true,
			".html": true,
			".htm":  true,
			".svg":  true,
		},
	}
}

// Disposition 返回附件应使用的 Content-Disposition 类型
func (p *AttachmentPolicy) Disposition(filename, mimeType string, data []byte, download bool) string {
	if download || !p.AllowInline(filename, mimeType, data) {
		return DispositionAttachment
	}
	return DispositionInline
}

// AllowInline 检查附件是否可以在浏览器内直接打开
func (p *AttachmentPolicy) AllowInline(filename, mimeType string, data []byte) bool {
	if p.IsDangerousExtension(filename) {
		return false
	}

	// 检查声明的 MIME 类型
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil || !p.inlineMimeTypes[strings.ToLower(mediaType)] {
		return false
	}

	// 检查实际内容，只看识别出的类型本身，不沿父类型回溯
	detected := mimetype.Detect(data)
	return p.inlineMimeTypes[baseType(detected.String())]
}

// IsDangerousExtension 检查文件扩展名是否属于可执行或脚本类型
func (p *AttachmentPolicy) IsDangerousExtension(filename string) bool {
	return p.dangerousExtensions[strings.ToLower(filepath.Ext(filename))]
}

func baseType(mediaType string) string {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		return strings.TrimSpace(mediaType[:i])
	}
	return mediaType
}
