package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
)

// State 是单封邮件在收信流程中的状态
type State string

const (
	StateReceived              State = "received"
	StateParsed                State = "parsed"
	StateMailboxResolved       State = "mailbox_resolved"
	StateEmailPersisted        State = "email_persisted"
	StateAttachmentsPersisting State = "attachments_persisting"
	StateDone                  State = "done"
	StateAbandoned             State = "abandoned"
)

// Store 是收信流程需要的持久化操作
type Store interface {
	MailboxLookup
	CreateEmail(ctx context.Context, email *domain.Email) error
	CreateAttachment(ctx context.Context, attachment *domain.Attachment) error
}

// Notifier 在新邮件入库后收到通知
type Notifier interface {
	NotifyNewEmail(address string, email *domain.Email)
}

// Metrics 记录收信结果
type Metrics interface {
	IngestMessage(state, reason string, elapsed time.Duration)
	IngestAttachment(result string, size int64)
}

// AttachmentResult 是单个附件的保存结果
type AttachmentResult struct {
	Filename     string
	Size         int64
	AttachmentID string // 保存失败时为空
	Err          error
}

// Outcome 是一次收信的最终结果。State 只会是 StateDone 或 StateAbandoned。
type Outcome struct {
	State       State
	Reached     State // 放弃前到达的最后一个状态
	Err         error
	Recipient   string
	MailboxID   string
	EmailID     string
	Attachments []AttachmentResult
}

// Persisted 返回成功保存的附件数
func (o Outcome) Persisted() int {
	n := 0
	for _, a := range o.Attachments {
		if a.Err == nil {
			n++
		}
	}
	return n
}

// Failed 返回保存失败的附件数
func (o Outcome) Failed() int {
	return len(o.Attachments) - o.Persisted()
}

// Option 配置 Service
type Option func(*Service)

// WithNotifier 设置新邮件通知
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics 设置指标记录
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service 负责把一封原始邮件变成 Email 和 Attachment 记录
type Service struct {
	store    Store
	parser   Parser
	resolver *Resolver
	notifier Notifier
	metrics  Metrics
	log      *zap.Logger
	now      func() time.Time
}

// NewService 创建收信服务
func NewService(store Store, parser Parser, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		parser:   parser,
		resolver: NewResolver(store),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle 是给传输层使用的入口，结果只体现在日志、指标和已保存的数据中
func (s *Service) Handle(ctx context.Context, raw []byte) {
	_ = s.Ingest(ctx, raw)
}

// Ingest 处理一封原始邮件。一旦开始就会运行到 Done 或 Abandoned，不受调用方取消影响。
func (s *Service) Ingest(ctx context.Context, raw []byte) (out Outcome) {
	ctx = context.WithoutCancel(ctx)
	start := s.now()
	out.Reached = StateReceived
	defer func() { s.finish(&out, start) }()

	parsed, err := s.parser.Parse(raw)
	if err != nil {
		return out.abandon(fmt.Errorf("%w: %w", ErrParse, err))
	}
	out.Reached = StateParsed

	mailbox, recipient, err := s.resolver.Resolve(ctx, NormalizeRecipients(parsed.To))
	if err != nil {
		return out.abandon(err)
	}
	out.Reached = StateMailboxResolved
	out.Recipient = recipient
	out.MailboxID = mailbox.ID

	email := &domain.Email{
		ID:             uuid.NewString(),
		MailboxID:      mailbox.ID,
		FromAddress:    parsed.From.Address,
		FromName:       parsed.From.Name,
		ToAddress:      recipient,
		Subject:        parsed.Subject,
		TextContent:    parsed.Text,
		HTMLContent:    parsed.HTML,
		HasAttachments: len(parsed.Attachments) > 0,
		ReceivedAt:     s.now(),
	}
	if err := s.store.CreateEmail(ctx, email); err != nil {
		return out.abandon(fmt.Errorf("%w: %w", ErrEmailPersist, err))
	}
	out.Reached = StateEmailPersisted
	out.EmailID = email.ID

	if len(parsed.Attachments) > 0 {
		out.Reached = StateAttachmentsPersisting
		out.Attachments = make([]AttachmentResult, 0, len(parsed.Attachments))
		for _, att := range parsed.Attachments {
			out.Attachments = append(out.Attachments, s.persistAttachment(ctx, email.ID, att))
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyNewEmail(recipient, email)
	}

	out.State = StateDone
	return out
}

func (o Outcome) abandon(err error) Outcome {
	o.State = StateAbandoned
	o.Err = err
	return o
}

// persistAttachment 保存单个附件。任何失败（包括 panic）都只记录在结果里。
func (s *Service) persistAttachment(ctx context.Context, emailID string, att ParsedAttachment) (res AttachmentResult) {
	res = AttachmentResult{Filename: att.Filename, Size: contentSize(att)}

	defer func() {
		if r := recover(); r != nil {
			res.AttachmentID = ""
			res.Err = fmt.Errorf("%w: panic: %v", ErrAttachmentPersist, r)
		}
		if res.Err != nil {
			s.log.Error("failed to save attachment",
				zap.String("email_id", emailID),
				zap.String("filename", att.Filename),
				zap.Error(res.Err),
			)
		}
		if s.metrics != nil {
			result := "saved"
			if res.Err != nil {
				result = "failed"
			}
			s.metrics.IngestAttachment(result, res.Size)
		}
	}()

	attachment := &domain.Attachment{
		ID:        uuid.NewString(),
		EmailID:   emailID,
		Filename:  att.Filename,
		MimeType:  att.MimeType,
		Content:   EncodeContent(att.Content),
		Size:      res.Size,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateAttachment(ctx, attachment); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrAttachmentPersist, err)
		return res
	}
	res.AttachmentID = attachment.ID
	return res
}

func (s *Service) finish(out *Outcome, start time.Time) {
	elapsed := s.now().Sub(start)

	if out.State == StateDone {
		s.log.Info("email ingested",
			zap.String("recipient", out.Recipient),
			zap.String("mailbox_id", out.MailboxID),
			zap.String("email_id", out.EmailID),
			zap.Int("attachments", len(out.Attachments)),
			zap.Int("attachments_failed", out.Failed()),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		s.log.Warn("email abandoned",
			zap.String("reached", string(out.Reached)),
			zap.String("reason", reason(out.Err)),
			zap.String("recipient", out.Recipient),
			zap.Error(out.Err),
		)
	}

	if s.metrics != nil {
		s.metrics.IngestMessage(string(out.State), reason(out.Err), elapsed)
	}
}
