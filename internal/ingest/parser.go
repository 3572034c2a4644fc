package ingest

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"
	"golang.org/x/text/unicode/norm"
)

// Address 是解析后的邮件地址
type Address struct {
	Address string
	Name    string
}

// ParsedAttachment 是解析出的一个附件
type ParsedAttachment struct {
	Filename string
	MimeType string
	Content  []byte
	Size     int64 // 解析器报告的大小，0 表示未知
}

// ParsedMessage 是 MIME 解析结果
type ParsedMessage struct {
	Subject     string
	From        Address
	To          []Address
	Text        string
	HTML        string
	Attachments []ParsedAttachment
}

// Parser 把原始邮件解析为结构化内容
type Parser interface {
	Parse(raw []byte) (*ParsedMessage, error)
}

// EnmimeParser 基于 enmime 的解析器，负责多部分解码和字符集转换
type EnmimeParser struct{}

// NewEnmimeParser 创建解析器
func NewEnmimeParser() *EnmimeParser {
	return &EnmimeParser{}
}

// Parse 解析原始邮件。普通附件、内嵌资源和其他非正文部分都作为附件返回。
func (p *EnmimeParser) Parse(raw []byte) (*ParsedMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	msg := &ParsedMessage{
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = Address{Address: from[0].Address, Name: from[0].Name}
	} else {
		msg.From = Address{Address: strings.TrimSpace(env.GetHeader("From"))}
	}

	if to, err := env.AddressList("To"); err == nil {
		for _, addr := range to {
			msg.To = append(msg.To, Address{Address: addr.Address, Name: addr.Name})
		}
	}

	parts := make([]*enmime.Part, 0, len(env.Attachments)+len(env.Inlines)+len(env.OtherParts))
	parts = append(parts, env.Attachments...)
	parts = append(parts, env.Inlines...)
	parts = append(parts, env.OtherParts...)
	for _, part := range parts {
		msg.Attachments = append(msg.Attachments, ParsedAttachment{
			Filename: norm.NFC.String(part.FileName),
			MimeType: part.ContentType,
			Content:  part.Content,
			Size:     int64(len(part.Content)),
		})
	}

	return msg, nil
}
