package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 地址校验相关的错误定义
var (
	ErrInvalidAddress   = errors.New("invalid email address")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrInvalidLocalPart = errors.New("invalid local part format")
	ErrInvalidDomain    = errors.New("invalid domain format")
)

// RFC 5321 长度限制
const (
	MaxAddressLength   = 254
	MaxLocalPartLength = 64
	MaxDomainLength    = 253
)

var (
	localPartRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*[a-z0-9]$|^[a-z0-9]$`)
	domainRegex    = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)
)

// NormalizeAddress 规范化邮箱地址：去除首尾空白并转为小写。
//
// 不折叠 user+tag 形式的子地址。
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SplitAddress 把规范化后的地址拆分为本地部分和域名。
func SplitAddress(address string) (localPart, domain string, err error) {
	if address == "" || len(address) > MaxAddressLength {
		return "", "", ErrInvalidAddress
	}
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return "", "", ErrInvalidAddress
	}
	return address[:at], address[at+1:], nil
}

// ValidateLocalPart 校验用户自定义的邮箱前缀
func ValidateLocalPart(localPart string) error {
	if localPart == "" {
		return ErrInvalidLocalPart
	}
	if len(localPart) > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}
	if !localPartRegex.MatchString(localPart) {
		return ErrInvalidLocalPart
	}

	// 不允许连续的特殊字符
	for _, seq := range []string{"..", ".-", "-.", "--", "__", "_.", "._", "-_", "_-"} {
		if strings.Contains(localPart, seq) {
			return ErrInvalidLocalPart
		}
	}
	return nil
}

// ValidateDomain 校验域名格式
func ValidateDomain(domain string) error {
	if domain == "" || len(domain) > MaxDomainLength {
		return ErrInvalidDomain
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}
