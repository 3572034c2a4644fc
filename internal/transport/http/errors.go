package httptransport

import (
	"errors"
	"net/http"

	"tempmail/inbox/internal/service"
	"tempmail/inbox/internal/storage"
)

type errorMapping struct {
	err    error
	status int
	msg    string
}

// 错误映射表（业务错误 -> 状态码和提示信息），按顺序匹配
var errorMappings = []errorMapping{
	// Mailbox 错误
	{service.ErrDomainNotAllowed, http.StatusBadRequest, MsgDomainNotAllowed},
	{service.ErrPrefixInvalid, http.StatusBadRequest, MsgInvalidAddress},
	{storage.ErrAddressTaken, http.StatusBadRequest, MsgAddressTaken},
	{storage.ErrMailboxNotFound, http.StatusNotFound, MsgMailboxNotFound},

	// Email 错误
	{storage.ErrEmailNotFound, http.StatusNotFound, MsgEmailNotFound},
	{storage.ErrAttachmentNotFound, http.StatusNotFound, MsgAttachmentNotFound},
}

// ErrorStatus 返回错误对应的 HTTP 状态码和提示信息
func ErrorStatus(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.msg
		}
	}
	return http.StatusInternalServerError, MsgInternalError
}

// 通用错误消息，与前端约定的文本保持一致
const (
	MsgInvalidRequest = "invalid request body"

	MsgDomainNotAllowed = "domain not allowed"
	MsgInvalidAddress   = "invalid address"
	MsgAddressTaken     = "address already exists"
	MsgMailboxNotFound  = "Mailbox not found"

	MsgEmailNotFound      = "email not found"
	MsgAttachmentNotFound = "attachment not found"

	MsgInboundUnauthorized = "invalid inbound secret"
	MsgMessageTooLarge     = "message too large"
	MsgServiceUnavailable  = "service unavailable, try again later"

	MsgInternalError = "internal server error"
)
