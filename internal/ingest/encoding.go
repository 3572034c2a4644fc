package ingest

import "encoding/base64"

// EncodeContent 把附件原始字节编码为可存入文本列的 base64 字符串
func EncodeContent(content []byte) string {
	return base64.StdEncoding.EncodeToString(content)
}

// DecodeContent 是 EncodeContent 的逆操作
func DecodeContent(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

// contentSize 优先使用解析器给出的大小，否则取原始字节长度
func contentSize(att ParsedAttachment) int64 {
	if att.Size > 0 {
		return att.Size
	}
	return int64(len(att.Content))
}
