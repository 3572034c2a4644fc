package smtp

import (
	"context"
	"fmt"
	"io"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
)

// Handler 处理一封完整的原始邮件
type Handler interface {
	Handle(ctx context.Context, raw []byte)
}

// Submitter 把任务交给后台协程执行
type Submitter interface {
	Submit(ctx context.Context, task func()) error
}

var (
	errTooManySessions = &gosmtp.SMTPError{
		Code:         421,
		EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
		Message:      "too many connections, try again later",
	}
	errInvalidRecipient = &gosmtp.SMTPError{
		Code:         501,
		EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
		Message:      "invalid recipient address",
	}
	errRelayDenied = &gosmtp.SMTPError{
		Code:         550,
		EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
		Message:      "relay access denied - domain not managed by this server",
	}
	errMessageTooLarge = &gosmtp.SMTPError{
		Code:         552,
		EnhancedCode: gosmtp.EnhancedCode{5, 3, 4},
		Message:      "message exceeds fixed maximum message size",
	}
	errShuttingDown = &gosmtp.SMTPError{
		Code:         421,
		EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
		Message:      "service shutting down, try again later",
	}
)

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的 SMTP 服务器：RCPT 阶段只校验收件域名是否由本系统管理，
// 邮箱是否存在由收信流程根据邮件头判断。DATA 阶段把原始邮件交给协程池后立即返回 250，
// 发信方不会得知处理结果。
type Backend struct {
	domains         map[string]struct{}
	handler         Handler
	pool            Submitter
	limiter         *rate.Limiter
	maxMessageBytes int64
	log             *zap.Logger
}

// NewBackend 创建 SMTP Backend。
func NewBackend(cfg config.SMTPConfig, allowedDomains []string, handler Handler, pool Submitter, log *zap.Logger) *Backend {
	domains := make(map[string]struct{}, len(allowedDomains))
	for _, d := range allowedDomains {
		domains[strings.ToLower(d)] = struct{}{}
	}

	var limiter *rate.Limiter
	if cfg.SessionRate > 0 {
		burst := cfg.SessionBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SessionRate), burst)
	}

	return &Backend{
		domains:         domains,
		handler:         handler,
		pool:            pool,
		limiter:         limiter,
		maxMessageBytes: cfg.MaxMessageBytes,
		log:             log,
	}
}

// NewServer 创建监听配置地址的 SMTP 服务器。
func NewServer(be *Backend, cfg config.SMTPConfig) *gosmtp.Server {
	s := gosmtp.NewServer(be)
	s.Addr = cfg.BindAddr
	s.Domain = cfg.Domain
	s.ReadTimeout = cfg.ReadTimeout
	s.WriteTimeout = cfg.WriteTimeout
	s.MaxMessageBytes = cfg.MaxMessageBytes
	s.MaxRecipients = cfg.MaxRecipients
	return s
}

// NewSession 创建新的 SMTP 会话，超过速率限制时返回 421。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	remote := ""
	if c != nil && c.Conn() != nil {
		remote = c.Conn().RemoteAddr().String()
	}

	if b.limiter != nil && !b.limiter.Allow() {
		b.log.Warn("smtp session rejected by rate limit", zap.String("remote", remote))
		return nil, errTooManySessions
	}

	return &session{backend: b, remote: remote}, nil
}

type session struct {
	backend    *Backend
	remote     string
	from       string
	recipients []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt 处理 RCPT 命令，只接受本系统管理的域名。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	_, rcptDomain, err := domain.SplitAddress(addr)
	if err != nil {
		return errInvalidRecipient
	}
	if _, ok := s.backend.domains[rcptDomain]; !ok {
		return errRelayDenied
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 读取邮件内容并提交给收信流程。
func (s *session) Data(r io.Reader) error {
	limit := s.backend.maxMessageBytes
	if limit <= 0 {
		limit = 10 << 20
	}

	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}
	if int64(len(raw)) > limit {
		return errMessageTooLarge
	}

	handler := s.backend.handler
	err = s.backend.pool.Submit(context.Background(), func() {
		handler.Handle(context.Background(), raw)
	})
	if err != nil {
		s.backend.log.Error("failed to queue message",
			zap.String("from", s.from),
			zap.Strings("recipients", s.recipients),
			zap.Error(err),
		)
		return errShuttingDown
	}

	s.backend.log.Debug("message queued",
		zap.String("remote", s.remote),
		zap.String("from", s.from),
		zap.Strings("recipients", s.recipients),
		zap.Int("bytes", len(raw)),
	)
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return domain.NormalizeAddress(addr)
}
