package httptransport

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/inbox/internal/service"
)

// getConfig 返回前端需要的域名配置
func (h *Handler) getConfig(c *gin.Context) {
	Success(c, http.StatusOK, gin.H{
		"domains":       h.mailboxes.Domains(),
		"defaultDomain": h.mailboxes.DefaultDomain(),
	})
}

// ========== Mailbox Handlers ==========

type createMailboxRequest struct {
	Address        string `json:"address"`
	Domain         string `json:"domain"`
	ExpiresInHours int    `json:"expiresInHours"`
}

// createMailbox 创建邮箱，body 可以为空
func (h *Handler) createMailbox(c *gin.Context) {
	var req createMailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		Fail(c, http.StatusBadRequest, MsgInvalidRequest)
		return
	}

	mailbox, err := h.mailboxes.Create(c.Request.Context(), service.CreateMailboxInput{
		Address:        req.Address,
		Domain:         req.Domain,
		ExpiresInHours: req.ExpiresInHours,
		IPAddress:      c.ClientIP(),
	})
	if err != nil {
		FailWithError(c, err)
		return
	}

	Success(c, http.StatusCreated, gin.H{"mailbox": toMailboxResponse(mailbox)})
}

func (h *Handler) getMailbox(c *gin.Context) {
	mailbox, err := h.mailboxes.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		FailWithError(c, err)
		return
	}

	Success(c, http.StatusOK, gin.H{"mailbox": toMailboxResponse(mailbox)})
}

func (h *Handler) deleteMailbox(c *gin.Context) {
	if err := h.mailboxes.Delete(c.Request.Context(), c.Param("address")); err != nil {
		FailWithError(c, err)
		return
	}

	Success(c, http.StatusOK, nil)
}

// ========== Email Handlers ==========

func (h *Handler) listEmails(c *gin.Context) {
	emails, err := h.emails.List(c.Request.Context(), c.Param("address"))
	if err != nil {
		FailWithError(c, err)
		return
	}

	items := make([]emailResponse, 0, len(emails))
	for i := range emails {
		items = append(items, toEmailResponse(&emails[i], false))
	}
	Success(c, http.StatusOK, gin.H{"emails": items})
}

func (h *Handler) getEmail(c *gin.Context) {
	email, err := h.emails.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		FailWithError(c, err)
		return
	}

	Success(c, http.StatusOK, gin.H{"email": toEmailResponse(email, true)})
}

func (h *Handler) deleteEmail(c *gin.Context) {
	if err := h.emails.Delete(c.Request.Context(), c.Param("id")); err != nil {
		FailWithError(c, err)
		return
	}

	Success(c, http.StatusOK, nil)
}

func (h *Handler) listAttachments(c *gin.Context) {
	attachments, err := h.emails.ListAttachments(c.Request.Context(), c.Param("id"))
	if err != nil {
		FailWithError(c, err)
		return
	}

	items := make([]attachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, toAttachmentResponse(&attachments[i]))
	}
	Success(c, http.StatusOK, gin.H{"attachments": items})
}

// downloadAttachment 返回解码后的附件，download=true 时作为下载
func (h *Handler) downloadAttachment(c *gin.Context) {
	file, err := h.emails.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		FailWithError(c, err)
		return
	}

	disposition := h.attachments.Disposition(file.Filename, file.MimeType, file.Data, c.Query("download") == "true")
	if file.Filename != "" {
		disposition = mime.FormatMediaType(disposition, map[string]string{"filename": file.Filename})
	}

	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, file.MimeType, file.Data)
}

// ========== Inbound Handler ==========

// receiveInbound 接收原始邮件并放入处理队列，处理结果不反馈给调用方
func (h *Handler) receiveInbound(c *gin.Context) {
	secret := c.GetHeader("X-Inbound-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.inboundSecret)) != 1 {
		Fail(c, http.StatusUnauthorized, MsgInboundUnauthorized)
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Fail(c, http.StatusRequestEntityTooLarge, MsgMessageTooLarge)
			return
		}
		Fail(c, http.StatusBadRequest, MsgInvalidRequest)
		return
	}
	if len(raw) == 0 {
		Fail(c, http.StatusBadRequest, MsgInvalidRequest)
		return
	}

	inbound := h.inbound
	err = h.queue.Submit(c.Request.Context(), func() {
		inbound.Handle(context.Background(), raw)
	})
	if err != nil {
		h.log.Warn("failed to queue inbound message", zap.Error(err))
		Fail(c, http.StatusServiceUnavailable, MsgServiceUnavailable)
		return
	}

	Success(c, http.StatusAccepted, nil)
}
