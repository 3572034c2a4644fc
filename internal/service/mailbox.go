package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

var (
	ErrDomainNotAllowed = errors.New("domain not allowed")
	ErrPrefixInvalid    = errors.New("invalid address")
)

const (
	randomLocalPartLength = 10
	randomLocalPartChars  = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxRandomAttempts     = 5
)

// MailboxMetrics 记录邮箱生命周期事件
type MailboxMetrics interface {
	RecordMailboxCreated()
	RecordMailboxDeleted()
	RecordMailboxesExpired(count int)
}

// MailboxService 封装邮箱相关业务操作。
type MailboxService struct {
	repo      storage.MailboxRepository
	cfg       config.MailboxConfig
	domainSet map[string]struct{}
	metrics   MailboxMetrics
	log       *zap.Logger
	now       func() time.Time
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(repo storage.MailboxRepository, cfg config.MailboxConfig, log *zap.Logger) *MailboxService {
	domainSet := make(map[string]struct{}, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		domainSet[d] = struct{}{}
	}

	return &MailboxService{
		repo:      repo,
		cfg:       cfg,
		domainSet: domainSet,
		log:       log,
		now:       time.Now,
	}
}

// SetMetrics 设置指标记录（可选）
func (s *MailboxService) SetMetrics(metrics MailboxMetrics) {
	s.metrics = metrics
}

// Domains 返回允许的域名列表，第一个是默认域名。
func (s *MailboxService) Domains() []string {
	out := make([]string, len(s.cfg.AllowedDomains))
	copy(out, s.cfg.AllowedDomains)
	return out
}

// DefaultDomain 返回默认域名。
func (s *MailboxService) DefaultDomain() string {
	return s.cfg.AllowedDomains[0]
}

// CreateMailboxInput 定义创建邮箱所需的输入。
type CreateMailboxInput struct {
	Address        string // 本地部分或完整地址，为空时随机生成
	Domain         string
	ExpiresInHours int
	IPAddress      string
}

// Create 创建新的临时邮箱。
//
// 同一地址已有未过期的邮箱时返回 storage.ErrAddressTaken。
func (s *MailboxService) Create(ctx context.Context, input CreateMailboxInput) (*domain.Mailbox, error) {
	localPart, requestedDomain := s.splitInput(input)

	selectedDomain := s.pickDomain(requestedDomain)
	if selectedDomain == "" {
		return nil, ErrDomainNotAllowed
	}

	now := s.now().UTC()
	ttl := s.ttl(input.ExpiresInHours)

	if localPart != "" {
		if err := domain.ValidateLocalPart(localPart); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPrefixInvalid, err)
		}
		return s.save(ctx, localPart+"@"+selectedDomain, now, ttl, input.IPAddress)
	}

	// 随机地址撞上已有邮箱时重新生成
	for attempt := 0; ; attempt++ {
		mailbox, err := s.save(ctx, generateRandomLocalPart()+"@"+selectedDomain, now, ttl, input.IPAddress)
		if errors.Is(err, storage.ErrAddressTaken) && attempt < maxRandomAttempts {
			continue
		}
		return mailbox, err
	}
}

func (s *MailboxService) save(ctx context.Context, address string, now time.Time, ttl time.Duration, ip string) (*domain.Mailbox, error) {
	mailbox := &domain.Mailbox{
		ID:           uuid.NewString(),
		Address:      address,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastAccessed: now,
		IPAddress:    ip,
	}

	if err := s.repo.CreateMailbox(ctx, mailbox); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMailboxCreated()
	}
	s.log.Info("mailbox created",
		zap.String("address", mailbox.Address),
		zap.Time("expires_at", mailbox.ExpiresAt),
	)
	return mailbox, nil
}

// Get 根据地址获取有效邮箱，并刷新最后访问时间。
func (s *MailboxService) Get(ctx context.Context, address string) (*domain.Mailbox, error) {
	address = domain.NormalizeAddress(address)
	if address == "" {
		return nil, storage.ErrMailboxNotFound
	}

	mailbox, err := s.repo.GetMailboxByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.TouchMailbox(ctx, address, now); err != nil {
		// 访问时间只是辅助信息
		s.log.Warn("failed to touch mailbox", zap.String("address", address), zap.Error(err))
	} else {
		mailbox.LastAccessed = now
	}
	return mailbox, nil
}

// Delete 删除指定邮箱及其全部邮件。
func (s *MailboxService) Delete(ctx context.Context, address string) error {
	address = domain.NormalizeAddress(address)
	if err := s.repo.DeleteMailbox(ctx, address); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordMailboxDeleted()
	}
	s.log.Info("mailbox deleted", zap.String("address", address))
	return nil
}

// PurgeExpired 删除所有已过期的邮箱，返回删除数量。
func (s *MailboxService) PurgeExpired(ctx context.Context) (int, error) {
	removed, err := s.repo.DeleteExpiredMailboxes(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}

	if len(removed) > 0 {
		if s.metrics != nil {
			s.metrics.RecordMailboxesExpired(len(removed))
		}
		s.log.Info("expired mailboxes purged", zap.Int("count", len(removed)))
	}
	return len(removed), nil
}

// splitInput 允许 address 为完整地址，此时以其中的域名为准。
func (s *MailboxService) splitInput(input CreateMailboxInput) (localPart, domainName string) {
	address := domain.NormalizeAddress(input.Address)
	domainName = input.Domain

	if at := strings.LastIndex(address, "@"); at >= 0 {
		return address[:at], address[at+1:]
	}
	return address, domainName
}

// pickDomain 挑选合法的邮箱域名。
func (s *MailboxService) pickDomain(requested string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" {
		return s.DefaultDomain()
	}
	if _, ok := s.domainSet[requested]; ok {
		return requested
	}
	return ""
}

// ttl 把请求的小时数限制在 [1h, MaxTTL]。
func (s *MailboxService) ttl(hours int) time.Duration {
	if hours <= 0 {
		return s.cfg.DefaultTTL
	}
	// 先比较小时数再相乘，避免 Duration 溢出
	if int64(hours) > int64(s.cfg.MaxTTL/time.Hour) {
		return s.cfg.MaxTTL
	}
	return time.Duration(hours) * time.Hour
}

// generateRandomLocalPart 生成随机前缀。
func generateRandomLocalPart() string {
	b := make([]byte, randomLocalPartLength)
	for i := range b {
		b[i] = randomLocalPartChars[rand.Intn(len(randomLocalPartChars))]
	}
	return string(b)
}
