package bot

import (
	"context"
	"fmt"

	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/scheduler"
)

// StatusTask는 봇 상태를 주기적으로 보고하는 스케줄러 작업입니다
type StatusTask struct {
	bot *Bot
}

var _ scheduler.Task = (*StatusTask)(nil)

// NewStatusTask는 새로운 상태 보고 작업을 생성합니다
func NewStatusTask(b *Bot) *StatusTask {
	return &StatusTask{bot: b}
}

// Execute는 현재 가격과 포지션 상태를 요약해 알림으로 전송합니다
func (t *StatusTask) Execute(ctx context.Context) error {
	symbol := t.bot.cfg.Trading.Symbol

	sample, err := t.bot.exchange.GetPriceSample(ctx, symbol)
	if err != nil {
		return fmt.Errorf("상태 보고용 가격 조회 실패: %w", err)
	}

	message := fmt.Sprintf("📊 **%s 상태 보고**\n현재가: $%.4f\n임계가: $%.4f (%s)",
		symbol, sample.LastPrice, t.bot.cfg.Trading.ThresholdPrice, t.bot.cfg.Trading.Direction)

	if pos := t.bot.manager.Position(); pos != nil && pos.IsActive() {
		unrealized := sample.LastPrice - pos.EntryPrice
		if pos.Side == domain.ShortPosition {
			unrealized = -unrealized
		}
		message += fmt.Sprintf("\n포지션: %s %.8f @ $%.4f (%s)\n평가 손익: $%.4f",
			pos.Side, pos.Quantity, pos.EntryPrice, pos.Status, unrealized*pos.Quantity)
	} else {
		message += "\n포지션: 없음 (돌파 대기 중)"
	}

	t.bot.notifyInfo(message)
	return nil
}
