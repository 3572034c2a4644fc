package httptransport

import "tempmail/inbox/internal/domain"

// 时间字段均为 Unix 秒
type mailboxResponse struct {
	ID           string `json:"id"`
	Address      string `json:"address"`
	CreatedAt    int64  `json:"createdAt"`
	ExpiresAt    int64  `json:"expiresAt"`
	LastAccessed int64  `json:"lastAccessed"`
	IPAddress    string `json:"ipAddress"`
}

type emailResponse struct {
	ID             string  `json:"id"`
	MailboxID      string  `json:"mailboxId"`
	FromAddress    string  `json:"fromAddress"`
	FromName       string  `json:"fromName"`
	ToAddress      string  `json:"toAddress"`
	Subject        string  `json:"subject"`
	TextContent    *string `json:"textContent,omitempty"`
	HTMLContent    *string `json:"htmlContent,omitempty"`
	ReceivedAt     int64   `json:"receivedAt"`
	IsRead         bool    `json:"isRead"`
	HasAttachments bool    `json:"hasAttachments"`
}

type attachmentResponse struct {
	ID        string `json:"id"`
	EmailID   string `json:"emailId"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"createdAt"`
}

func toMailboxResponse(mailbox *domain.Mailbox) mailboxResponse {
	return mailboxResponse{
		ID:           mailbox.ID,
		Address:      mailbox.Address,
		CreatedAt:    mailbox.CreatedAt.Unix(),
		ExpiresAt:    mailbox.ExpiresAt.Unix(),
		LastAccessed: mailbox.LastAccessed.Unix(),
		IPAddress:    mailbox.IPAddress,
	}
}

// toEmailResponse 在 withBody 为 false 时不输出正文字段
func toEmailResponse(email *domain.Email, withBody bool) emailResponse {
	resp := emailResponse{
		ID:             email.ID,
		MailboxID:      email.MailboxID,
		FromAddress:    email.FromAddress,
		FromName:       email.FromName,
		ToAddress:      email.ToAddress,
		Subject:        email.Subject,
		ReceivedAt:     email.ReceivedAt.Unix(),
		IsRead:         email.IsRead,
		HasAttachments: email.HasAttachments,
	}
	if withBody {
		text, html := email.TextContent, email.HTMLContent
		resp.TextContent = &text
		resp.HTMLContent = &html
	}
	return resp
}

func toAttachmentResponse(attachment *domain.Attachment) attachmentResponse {
	return attachmentResponse{
		ID:        attachment.ID,
		EmailID:   attachment.EmailID,
		Filename:  attachment.Filename,
		MimeType:  attachment.MimeType,
		Size:      attachment.Size,
		CreatedAt: attachment.CreatedAt.Unix(),
	}
}
