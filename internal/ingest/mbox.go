package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-mbox"
)

// Ingester 同步处理一封原始邮件并返回结果，由 *Service 实现
type Ingester interface {
	Ingest(ctx context.Context, raw []byte) Outcome
}

// ReplaySummary 汇总一次 mbox 回放的结果
type ReplaySummary struct {
	Total     int
	Done      int
	Abandoned int
	Unread    int // 读取失败、未进入收信流程的邮件数
}

// ReplayMbox 依次读取 mbox 中的邮件并同步走完收信流程。
// 每封邮件处理后调用 report；单封读取失败不会中断回放。
func ReplayMbox(ctx context.Context, r io.Reader, in Ingester, report func(index int, out Outcome, err error)) (ReplaySummary, error) {
	var summary ReplaySummary
	reader := mbox.NewReader(r)

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		msg, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		if err != nil {
			// 分隔行损坏时后续邮件无法定位
			return summary, fmt.Errorf("read mbox message %d: %w", index, err)
		}

		summary.Total++
		raw, err := io.ReadAll(msg)
		if err != nil {
			summary.Unread++
			if report != nil {
				report(index, Outcome{}, err)
			}
			continue
		}

		out := in.Ingest(ctx, raw)
		if out.State == StateDone {
			summary.Done++
		} else {
			summary.Abandoned++
		}
		if report != nil {
			report(index, out, nil)
		}
	}
}
