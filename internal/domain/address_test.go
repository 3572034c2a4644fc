package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"去除空白", "  user@temp.mail \t", "user@temp.mail"},
		{"转为小写", "User@Temp.MAIL", "user@temp.mail"},
		{"保留子地址", "User+Tag@temp.mail", "user+tag@temp.mail"},
		{"空字符串", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAddress(tt.input))
		})
	}
}

func TestSplitAddress(t *testing.T) {
	t.Run("拆分成功", func(t *testing.T) {
		local, domain, err := SplitAddress("alice@temp.mail")
		require.NoError(t, err)
		assert.Equal(t, "alice", local)
		assert.Equal(t, "temp.mail", domain)
	})

	t.Run("引号内含@时按最后一个@拆分", func(t *testing.T) {
		local, domain, err := SplitAddress(`"a@b"@temp.mail`)
		require.NoError(t, err)
		assert.Equal(t, `"a@b"`, local)
		assert.Equal(t, "temp.mail", domain)
	})

	for _, input := range []string{"", "alice", "@temp.mail", "alice@"} {
		t.Run("无效地址 "+input, func(t *testing.T) {
			_, _, err := SplitAddress(input)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestValidateLocalPart(t *testing.T) {
	tests := []struct {
		name      string
		localPart string
		wantErr   error
	}{
		{"单字符", "a", nil},
		{"字母数字", "user123", nil},
		{"带点和横线", "first.last-name", nil},
		{"空", "", ErrInvalidLocalPart},
		{"以点开头", ".user", ErrInvalidLocalPart},
		{"连续的点", "user..name", ErrInvalidLocalPart},
		{"非法字符", "user$", ErrInvalidLocalPart},
		{"大写字母", "User", ErrInvalidLocalPart},
		{"过长", "a123456789b123456789c123456789d123456789e123456789f123456789g12345", ErrLocalPartTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLocalPart(tt.localPart)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateDomain(t *testing.T) {
	assert.NoError(t, ValidateDomain("temp.mail"))
	assert.NoError(t, ValidateDomain("mx.sub.example.com"))
	assert.ErrorIs(t, ValidateDomain(""), ErrInvalidDomain)
	assert.ErrorIs(t, ValidateDomain("-bad.com"), ErrInvalidDomain)
	assert.ErrorIs(t, ValidateDomain("bad..com"), ErrInvalidDomain)
}

func TestMailboxIsLive(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mailbox := &Mailbox{ExpiresAt: now.Add(time.Minute)}

	assert.True(t, mailbox.IsLive(now))
	assert.False(t, mailbox.IsLive(now.Add(time.Minute)), "到期时刻本身视为已过期")
	assert.False(t, mailbox.IsLive(now.Add(time.Hour)))
}
