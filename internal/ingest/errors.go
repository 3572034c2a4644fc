package ingest

import "errors"

// 收信处理的错误分类。前四种会放弃整封邮件，ErrAttachmentPersist 只影响单个附件。
var (
	ErrParse             = errors.New("parse message")
	ErrNoRecipient       = errors.New("no recipient")
	ErrMailboxNotFound   = errors.New("mailbox not found")
	ErrEmailPersist      = errors.New("persist email")
	ErrAttachmentPersist = errors.New("persist attachment")
)

// reason 返回用于日志和指标的简短原因标签
func reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrNoRecipient):
		return "no_recipient"
	case errors.Is(err, ErrMailboxNotFound):
		return "mailbox_not_found"
	case errors.Is(err, ErrEmailPersist):
		return "email_persist_error"
	case errors.Is(err, ErrAttachmentPersist):
		return "attachment_persist_error"
	default:
		return "lookup_error"
	}
}
