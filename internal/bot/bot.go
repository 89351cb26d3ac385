// Package bot은 피드 → 감시 → 최적화 → 실행 → 포지션 관리로 이어지는
// 단일 제어 루프를 구현합니다. 모든 단계는 순차적으로 실행되며,
// 포지션이 CLOSED에 도달하고 감시기가 리셋되기 전에는
// 새 돌파 사이클이 시작되지 않습니다.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/assist-by/crossline/internal/config"
	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/exchange"
	"github.com/assist-by/crossline/internal/executor"
	"github.com/assist-by/crossline/internal/feed"
	"github.com/assist-by/crossline/internal/monitor"
	"github.com/assist-by/crossline/internal/notification"
	"github.com/assist-by/crossline/internal/optimizer"
	"github.com/assist-by/crossline/internal/position"
	"github.com/assist-by/crossline/internal/store"
)

// PositionStore는 포지션 상태를 보존하는 저장소 인터페이스입니다
type PositionStore interface {
	Save(pos domain.Position) error
	Load() (*domain.Position, error)
	Clear() error
}

// Bot은 임계가 돌파 트레이딩 봇의 본체입니다
type Bot struct {
	cfg      *config.Config
	exchange exchange.Exchange
	feed     feed.Feed
	notifier notification.Notifier
	store    PositionStore

	monitor   *monitor.Monitor
	optimizer *optimizer.Optimizer
	executor  *executor.Executor
	manager   *position.Manager

	lastLoggedPrice float64
}

var _ PositionStore = (*store.Store)(nil)

// New는 새로운 봇을 생성합니다. notifier와 store는 nil일 수 있습니다.
func New(cfg *config.Config, ex exchange.Exchange, fd feed.Feed, notifier notification.Notifier, st PositionStore) *Bot {
	symbol := cfg.Trading.Symbol

	return &Bot{
		cfg:      cfg,
		exchange: ex,
		feed:     fd,
		notifier: notifier,
		store:    st,
		monitor:  monitor.NewMonitor(cfg.Trading.Direction, cfg.Trading.ThresholdPrice),
		executor: executor.NewExecutor(ex, executor.Config{
			MaxAttempts:    cfg.Optimizer.MaxAttempts,
			AttemptTimeout: cfg.Optimizer.AttemptTimeout,
			BackoffBase:    cfg.Optimizer.BackoffBase,
			Leverage:       cfg.Trading.Leverage,
			PollInterval:   pollEvery(cfg.Optimizer.AttemptTimeout),
		}),
		manager: position.NewManager(symbol, cfg.Trading.Direction, cfg.Trading.ThresholdPrice),
	}
}

// pollEvery는 체결 대기 시간에 맞는 주문 상태 폴링 간격을 계산합니다
func pollEvery(attemptTimeout time.Duration) time.Duration {
	p := attemptTimeout / 4
	if p > 500*time.Millisecond {
		p = 500 * time.Millisecond
	}
	return p
}

// Run은 봇을 기동하고 제어 루프를 실행합니다.
// 컨텍스트가 취소되거나 세션을 지속할 수 없는 에러가 나면 반환합니다.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.setup(ctx); err != nil {
		return err
	}
	if err := b.reconcile(ctx); err != nil {
		return err
	}

	log.Printf("%s 감시 시작 (방향: %s, 임계가: %.4f)",
		b.cfg.Trading.Symbol, b.cfg.Trading.Direction, b.cfg.Trading.ThresholdPrice)

	for {
		sample, err := b.feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, feed.ErrFeedClosed) {
				return err
			}
			// 일시적 피드 장애: 이번 사이클의 돌파 감지를 보류하고 계속
			log.Printf("가격 조회 실패: %v", err)
			continue
		}

		b.logPrice(sample)

		if err := b.cycle(ctx, sample); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("사이클 처리 실패: %v", err)
			b.notifyError(err)
		}
	}
}

// setup은 시간 동기화, 심볼 정보 조회, 마진 모드 설정을 수행합니다
func (b *Bot) setup(ctx context.Context) error {
	symbol := b.cfg.Trading.Symbol

	if err := b.exchange.SyncTime(ctx); err != nil {
		return fmt.Errorf("서버 시간 동기화 실패: %w", err)
	}

	info, err := b.exchange.GetSymbolInfo(ctx, symbol)
	if err != nil {
		return fmt.Errorf("심볼 정보 조회 실패: %w", err)
	}

	b.optimizer = optimizer.NewOptimizer(optimizer.Config{
		MaxAttempts:   b.cfg.Optimizer.MaxAttempts,
		OffsetTicks:   b.cfg.Optimizer.PriceOffsetTicks,
		PositionValue: b.cfg.Trading.PositionValue,
	}, *info)

	// 첫 주문 전에 격리 마진과 레버리지를 보장. 실패하면 세션 시작 불가.
	if err := b.executor.EnsureMarginMode(ctx, symbol); err != nil {
		return err
	}

	return nil
}

// reconcile은 재시작 시 저장된 상태와 거래소의 실제 포지션을 맞춥니다.
// 거래소에 살아 있는 포지션이 있으면 중복 진입 대신 인수해서 관리를 잇고,
// 저장소에만 남은 기록은 이미 닫힌 것이므로 지웁니다.
func (b *Bot) reconcile(ctx context.Context) error {
	symbol := b.cfg.Trading.Symbol

	live, err := b.exchange.GetPosition(ctx, symbol)
	if err != nil {
		return fmt.Errorf("포지션 조회 실패: %w", err)
	}

	var saved *domain.Position
	if b.store != nil {
		saved, err = b.store.Load()
		if err != nil {
			return fmt.Errorf("저장된 포지션 복원 실패: %w", err)
		}
	}

	if live != nil {
		// 저장된 진입 기록이 더 정확하면 (VWAP 등) 그 값을 우선
		adopt := *live
		if saved != nil && saved.Symbol == symbol && saved.Side == live.Side {
			adopt.EntryPrice = saved.EntryPrice
			adopt.OpenedAt = saved.OpenedAt
		}
		if err := b.manager.Adopt(adopt); err != nil {
			return err
		}
		b.savePosition()

		log.Printf("%s 기존 포지션 인수 (수량: %.8f, 진입가: %.4f)",
			symbol, adopt.Quantity, adopt.EntryPrice)
		b.notifyInfo(fmt.Sprintf("재시작: %s 기존 포지션을 이어서 관리합니다 (수량 %.8f)",
			symbol, adopt.Quantity))
		return nil
	}

	if saved != nil && b.store != nil {
		// 기록만 남고 실제 포지션은 없음: 외부에서 청산된 것으로 간주
		log.Printf("%s 저장된 포지션이 거래소에 없어 기록을 정리합니다", symbol)
		if err := b.store.Clear(); err != nil {
			return err
		}
	}

	return nil
}

// cycle은 가격 샘플 하나에 대한 전체 파이프라인을 처리합니다
func (b *Bot) cycle(ctx context.Context, sample domain.PriceSample) error {
	// 활성 포지션이 있으면 청산 조건부터 확인.
	// 직전 가격은 포지션 보유 중에도 계속 갱신해야 청산 직후의
	// 재돌파를 놓치지 않습니다 (이벤트는 래치가 흡수).
	if b.manager.HasActive() {
		b.monitor.Observe(sample)
		if decision := b.manager.CheckExit(sample); decision != nil {
			return b.closePosition(ctx, decision)
		}
		return nil
	}

	event := b.monitor.Observe(sample)
	if event == nil {
		return nil
	}

	return b.openPosition(ctx, event)
}

// openPosition은 돌파 이벤트에 대한 진입을 수행합니다
func (b *Bot) openPosition(ctx context.Context, event *monitor.CrossingEvent) error {
	symbol := b.cfg.Trading.Symbol

	log.Printf("%s 임계가 돌파 감지 (%.4f → %.4f, 방향: %s)",
		symbol, event.PreviousPrice, event.TriggerPrice, event.Direction)
	b.notifyCrossing(event)

	fills, err := b.executor.ExecuteEntry(ctx, symbol, b.optimizer, event)
	if len(fills) == 0 {
		// 체결이 전혀 없으면 이번 이벤트는 소진된 것으로 보고
		// 다음 돌파에서 다시 시도할 수 있게 감시기를 리셋
		b.monitor.Reset()
		if err != nil {
			return fmt.Errorf("진입 실패: %w", err)
		}
		return fmt.Errorf("진입 주문이 체결되지 않았습니다")
	}

	pos, fillErr := b.manager.OnFill(b.cfg.Trading.Leverage, fills...)
	if fillErr != nil {
		return fillErr
	}
	if err := b.manager.ConfirmOpen(); err != nil {
		return err
	}
	b.savePosition()

	log.Printf("%s 포지션 진입 완료 (수량: %.8f, 진입가: %.4f)",
		symbol, pos.Quantity, pos.EntryPrice)
	b.notifyTrade("진입", nil)

	// 일부만 체결된 뒤 실행 에러로 중단된 경우: 포지션은 관리하되 에러는 보고
	if err != nil {
		return fmt.Errorf("진입이 부분 체결로 끝났습니다: %w", err)
	}
	return nil
}

// closePosition은 청산 결정을 실행하고 확인까지 책임집니다
func (b *Bot) closePosition(ctx context.Context, decision *position.ExitDecision) error {
	symbol := b.cfg.Trading.Symbol
	log.Printf("%s 청산 시작 (사유: %s)", symbol, decision.Reason)

	resp, err := b.executor.Submit(ctx, decision.Request)
	if err != nil {
		b.manager.OnCloseFailed()
		return fmt.Errorf("청산 주문 제출 실패: %w", err)
	}

	final, err := b.executor.Await(ctx, symbol, resp.OrderID, b.cfg.Optimizer.AttemptTimeout)
	if err != nil {
		b.manager.OnCloseFailed()
		return fmt.Errorf("청산 주문 확인 실패: %w", err)
	}

	if final == nil || final.Status != domain.OrderFilled {
		// 시장가 청산이 확인되지 않음: 잔여 주문을 정리하고 다음 사이클에 재시도
		cancelled, cancelErr := b.executor.Cancel(ctx, symbol, resp.OrderID)
		if cancelErr == nil && cancelled != nil && cancelled.Status == domain.OrderFilled {
			final = cancelled
		} else {
			b.manager.OnCloseFailed()
			return fmt.Errorf("청산 주문이 체결되지 않았습니다 (주문 ID: %d)", resp.OrderID)
		}
	}

	exitPrice := final.AvgPrice
	if exitPrice <= 0 {
		exitPrice = final.Price
	}

	pnl, err := b.manager.OnCloseConfirmed(exitPrice, final.CreateTime)
	if err != nil {
		return err
	}

	if b.store != nil {
		if err := b.store.Clear(); err != nil {
			log.Printf("포지션 기록 정리 실패: %v", err)
		}
	}

	log.Printf("%s 청산 완료 (청산가: %.4f, 실현 손익: %.4f)", symbol, exitPrice, pnl)
	b.notifyTrade("청산", &pnl)

	// 새 사이클 준비: 포지션 정리 후 감시기 리셋
	b.manager.Clear()
	b.monitor.Reset()
	return nil
}

// savePosition은 현재 포지션 스냅샷을 저장소에 보존합니다
func (b *Bot) savePosition() {
	if b.store == nil {
		return
	}
	pos := b.manager.Position()
	if pos == nil {
		return
	}
	if err := b.store.Save(*pos); err != nil {
		log.Printf("포지션 저장 실패: %v", err)
	}
}

// logPrice는 가격이 바뀐 경우에만 로그를 남깁니다
func (b *Bot) logPrice(sample domain.PriceSample) {
	if !sample.IsValid() || sample.LastPrice == b.lastLoggedPrice {
		return
	}
	b.lastLoggedPrice = sample.LastPrice
	log.Printf("%s 현재가: %.4f (임계가: %.4f)",
		sample.Symbol, sample.LastPrice, b.monitor.Threshold())
}

func (b *Bot) notifyCrossing(event *monitor.CrossingEvent) {
	if b.notifier == nil {
		return
	}
	err := b.notifier.SendCrossing(notification.CrossingInfo{
		Symbol:        b.cfg.Trading.Symbol,
		Direction:     string(event.Direction),
		Threshold:     b.monitor.Threshold(),
		TriggerPrice:  event.TriggerPrice,
		PreviousPrice: event.PreviousPrice,
		Time:          event.Time,
	})
	if err != nil {
		log.Printf("돌파 알림 전송 실패: %v", err)
	}
}

func (b *Bot) notifyTrade(action string, pnl *float64) {
	if b.notifier == nil {
		return
	}
	pos := b.manager.Position()
	if pos == nil {
		return
	}
	err := b.notifier.SendTradeInfo(notification.TradeInfo{
		Symbol:        pos.Symbol,
		Action:        action,
		PositionType:  string(pos.Side),
		Quantity:      pos.Quantity,
		Price:         pos.EntryPrice,
		PositionValue: pos.Notional(),
		Leverage:      pos.Leverage,
		RealizedPnL:   pnl,
	})
	if err != nil {
		log.Printf("거래 알림 전송 실패: %v", err)
	}
}

func (b *Bot) notifyError(err error) {
	if b.notifier == nil {
		return
	}
	if sendErr := b.notifier.SendError(err); sendErr != nil {
		log.Printf("에러 알림 전송 실패: %v", sendErr)
	}
}

func (b *Bot) notifyInfo(message string) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.SendInfo(message); err != nil {
		log.Printf("정보 알림 전송 실패: %v", err)
	}
}
