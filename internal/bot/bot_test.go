package bot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/assist-by/crossline/internal/config"
	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/exchange"
	"github.com/assist-by/crossline/internal/exchange/paper"
	"github.com/assist-by/crossline/internal/feed"
	"github.com/assist-by/crossline/internal/notification"
	"github.com/assist-by/crossline/internal/store"
)

// scriptFeed는 정해진 샘플을 순서대로 공급하고 페이퍼 거래소에도 반영합니다.
// 샘플이 소진되면 ErrFeedClosed를 반환해 봇 루프를 끝냅니다.
type scriptFeed struct {
	paper   *paper.Exchange
	samples []domain.PriceSample
	idx     int
}

func (f *scriptFeed) Next(ctx context.Context) (domain.PriceSample, error) {
	if f.idx >= len(f.samples) {
		return domain.PriceSample{}, feed.ErrFeedClosed
	}
	s := f.samples[f.idx]
	f.idx++
	f.paper.SetSample(s)
	return s, nil
}

func (f *scriptFeed) Close() error { return nil }

// recordNotifier는 전송된 알림을 기록합니다
type recordNotifier struct {
	crossings []notification.CrossingInfo
	trades    []notification.TradeInfo
	errors    []error
	infos     []string
}

func (n *recordNotifier) SendCrossing(info notification.CrossingInfo) error {
	n.crossings = append(n.crossings, info)
	return nil
}

func (n *recordNotifier) SendError(err error) error {
	n.errors = append(n.errors, err)
	return nil
}

func (n *recordNotifier) SendInfo(message string) error {
	n.infos = append(n.infos, message)
	return nil
}

func (n *recordNotifier) SendTradeInfo(info notification.TradeInfo) error {
	n.trades = append(n.trades, info)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Trading.Symbol = "BTCUSDT"
	cfg.Trading.Direction = domain.Above
	cfg.Trading.ThresholdPrice = 10.00
	cfg.Trading.PositionValue = 20.0
	cfg.Trading.Leverage = 2
	cfg.Optimizer.MaxAttempts = 1
	cfg.Optimizer.AttemptTimeout = 20 * time.Millisecond
	cfg.Optimizer.BackoffBase = time.Millisecond
	cfg.Optimizer.PriceOffsetTicks = 1
	cfg.App.PollInterval = time.Millisecond
	cfg.App.DryRun = true
	return cfg
}

func testInfo() domain.SymbolInfo {
	return domain.SymbolInfo{
		Symbol:            "BTCUSDT",
		StepSize:          0.001,
		TickSize:          0.01,
		MinNotional:       10.0,
		PricePrecision:    2,
		QuantityPrecision: 3,
	}
}

func makeSamples(prices ...float64) []domain.PriceSample {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]domain.PriceSample, len(prices))
	for i, p := range prices {
		samples[i] = domain.PriceSample{
			Time:      base.Add(time.Duration(i) * 2 * time.Second),
			LastPrice: p,
			BestBid:   p - 0.01,
			BestAsk:   p + 0.01,
			Symbol:    "BTCUSDT",
		}
	}
	return samples
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestBot_FullCycle은 돌파 → 진입 → 임계가 복귀 → 청산의 전체 흐름을 확인합니다
func TestBot_FullCycle(t *testing.T) {
	ex := paper.NewExchange(nil, testInfo())
	ex.SetSample(makeSamples(9.50)[0])

	fd := &scriptFeed{
		paper: ex,
		// 돌파(10.10) → 유지(10.20) → 복귀(9.90) → 루프 종료
		samples: makeSamples(9.50, 9.90, 10.10, 10.20, 9.90),
	}
	notifier := &recordNotifier{}
	st := openStore(t)

	b := New(testConfig(), ex, fd, notifier, st)
	err := b.Run(context.Background())
	if !errors.Is(err, feed.ErrFeedClosed) {
		t.Fatalf("Run() error = %v, want ErrFeedClosed", err)
	}

	// 청산 완료: 거래소 포지션과 저장소 기록이 모두 정리됨
	pos, err := ex.GetPosition(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if pos != nil {
		t.Errorf("청산 후 포지션이 남아 있음: %+v", pos)
	}

	saved, err := st.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved != nil {
		t.Errorf("청산 후 저장소 기록이 남아 있음: %+v", saved)
	}

	if len(notifier.crossings) != 1 {
		t.Errorf("crossings = %d, want 1", len(notifier.crossings))
	}
	if len(notifier.trades) != 2 {
		t.Fatalf("trades = %d, want 2 (진입, 청산)", len(notifier.trades))
	}
	if notifier.trades[0].Action != "진입" || notifier.trades[1].Action != "청산" {
		t.Errorf("trade actions = %s, %s", notifier.trades[0].Action, notifier.trades[1].Action)
	}
	if notifier.trades[1].RealizedPnL == nil {
		t.Error("청산 알림에 실현 손익이 없음")
	}
}

// TestBot_ReentryAfterClose는 청산 직후 가격이 바로 임계가를 되넘는
// 경우를 확인합니다. 포지션 보유 중에도 직전 가격이 갱신되어야
// 청산 다음 샘플의 재돌파가 감지됩니다.
func TestBot_ReentryAfterClose(t *testing.T) {
	ex := paper.NewExchange(nil, testInfo())
	ex.SetSample(makeSamples(9.50)[0])

	fd := &scriptFeed{
		paper: ex,
		// 돌파(10.10) → 복귀 청산(9.90) → 즉시 재돌파(10.10) → 재청산(9.80)
		samples: makeSamples(9.50, 10.10, 9.90, 10.10, 9.80),
	}
	notifier := &recordNotifier{}
	st := openStore(t)

	b := New(testConfig(), ex, fd, notifier, st)
	if err := b.Run(context.Background()); !errors.Is(err, feed.ErrFeedClosed) {
		t.Fatalf("Run() error = %v, want ErrFeedClosed", err)
	}

	if len(notifier.crossings) != 2 {
		t.Fatalf("crossings = %d, want 2 (청산 직후 재돌파 포함)", len(notifier.crossings))
	}
	if len(notifier.trades) != 4 {
		t.Fatalf("trades = %d, want 4 (진입/청산 2회)", len(notifier.trades))
	}
	wantActions := []string{"진입", "청산", "진입", "청산"}
	for i, want := range wantActions {
		if notifier.trades[i].Action != want {
			t.Errorf("trades[%d].Action = %s, want %s", i, notifier.trades[i].Action, want)
		}
	}

	pos, _ := ex.GetPosition(context.Background(), "BTCUSDT")
	if pos != nil {
		t.Errorf("재청산 후 포지션이 남아 있음: %+v", pos)
	}
}

// rejectingExchange는 처음 몇 건의 주문 제출을 거부하는 래퍼입니다
type rejectingExchange struct {
	*paper.Exchange
	rejects int
}

func (e *rejectingExchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResponse, error) {
	if e.rejects > 0 {
		e.rejects--
		return nil, &exchange.APIError{Code: -2019, Message: "Margin is insufficient."}
	}
	return e.Exchange.PlaceOrder(ctx, req)
}

// TestBot_CycleErrorContinues는 진입 실패가 세션을 끝내지 않는지 확인합니다.
// 거부된 진입은 에러로 보고하되 루프는 계속되고, 다음 돌파에서 다시 진입합니다.
func TestBot_CycleErrorContinues(t *testing.T) {
	inner := paper.NewExchange(nil, testInfo())
	inner.SetSample(makeSamples(9.50)[0])
	ex := &rejectingExchange{Exchange: inner, rejects: 1}

	fd := &scriptFeed{
		paper: inner,
		// 첫 돌파는 주문 거부 → 리셋 → 두 번째 돌파에서 진입 성공
		samples: makeSamples(9.50, 10.10, 9.60, 10.10),
	}
	notifier := &recordNotifier{}

	b := New(testConfig(), ex, fd, notifier, openStore(t))
	if err := b.Run(context.Background()); !errors.Is(err, feed.ErrFeedClosed) {
		t.Fatalf("Run() error = %v, want ErrFeedClosed", err)
	}

	if len(notifier.errors) == 0 {
		t.Error("거부된 진입이 에러로 보고되지 않음")
	}
	if len(notifier.crossings) != 2 {
		t.Errorf("crossings = %d, want 2", len(notifier.crossings))
	}
	if len(notifier.trades) != 1 || notifier.trades[0].Action != "진입" {
		t.Fatalf("trades = %+v, want 진입 1건", notifier.trades)
	}

	pos, _ := inner.GetPosition(context.Background(), "BTCUSDT")
	if pos == nil || pos.Quantity <= 0 {
		t.Errorf("두 번째 돌파에서 진입하지 못함: %+v", pos)
	}
}

// TestBot_NoEntryWithoutCrossing은 시작부터 임계가 위인 가격에 진입하지 않는지 확인합니다
func TestBot_NoEntryWithoutCrossing(t *testing.T) {
	ex := paper.NewExchange(nil, testInfo())
	fd := &scriptFeed{
		paper:   ex,
		samples: makeSamples(10.50, 10.60, 10.70),
	}
	notifier := &recordNotifier{}

	b := New(testConfig(), ex, fd, notifier, openStore(t))
	err := b.Run(context.Background())
	if !errors.Is(err, feed.ErrFeedClosed) {
		t.Fatalf("Run() error = %v, want ErrFeedClosed", err)
	}

	pos, _ := ex.GetPosition(context.Background(), "BTCUSDT")
	if pos != nil {
		t.Errorf("돌파 없이 포지션이 생김: %+v", pos)
	}
	if len(notifier.crossings) != 0 {
		t.Errorf("crossings = %d, want 0", len(notifier.crossings))
	}
}

// TestBot_ReconcileAdoptsLivePosition은 재시작 시 거래소에 살아 있는
// 포지션을 인수하고, 안전망 청산이 동작하는지 확인합니다
func TestBot_ReconcileAdoptsLivePosition(t *testing.T) {
	ex := paper.NewExchange(nil, testInfo())
	ex.SetSample(makeSamples(10.50)[0])

	// 이전 세션에서 연 것으로 가정하는 포지션
	_, err := ex.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", Side: domain.Buy, Type: domain.Market, Quantity: 2.0,
	})
	if err != nil {
		t.Fatalf("사전 포지션 생성 실패: %v", err)
	}

	// 가격이 이미 임계가 아래: 인수 직후 안전망 청산이 나가야 함
	fd := &scriptFeed{paper: ex, samples: makeSamples(9.80)}
	notifier := &recordNotifier{}
	st := openStore(t)

	b := New(testConfig(), ex, fd, notifier, st)
	err = b.Run(context.Background())
	if !errors.Is(err, feed.ErrFeedClosed) {
		t.Fatalf("Run() error = %v, want ErrFeedClosed", err)
	}

	pos, _ := ex.GetPosition(context.Background(), "BTCUSDT")
	if pos != nil {
		t.Errorf("안전망 청산 후 포지션이 남아 있음: %+v", pos)
	}

	// 돌파 이벤트 없이 청산만 발생
	if len(notifier.crossings) != 0 {
		t.Errorf("crossings = %d, want 0", len(notifier.crossings))
	}
	if len(notifier.trades) != 1 || notifier.trades[0].Action != "청산" {
		t.Fatalf("trades = %+v, want 청산 1건", notifier.trades)
	}
}

// TestBot_StaleStoreCleared는 저장소에만 남은 포지션 기록이 정리되는지 확인합니다
func TestBot_StaleStoreCleared(t *testing.T) {
	ex := paper.NewExchange(nil, testInfo())
	st := openStore(t)

	// 거래소에는 없는 포지션 기록
	stale := domain.Position{
		Symbol:     "BTCUSDT",
		Side:       domain.LongPosition,
		Quantity:   1.0,
		EntryPrice: 10.0,
		Leverage:   2,
		OpenedAt:   time.Now().Add(-time.Hour),
		Status:     domain.PositionOpen,
	}
	if err := st.Save(stale); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	fd := &scriptFeed{paper: ex, samples: makeSamples(9.50)}
	b := New(testConfig(), ex, fd, &recordNotifier{}, st)
	if err := b.Run(context.Background()); !errors.Is(err, feed.ErrFeedClosed) {
		t.Fatalf("Run() error = %v, want ErrFeedClosed", err)
	}

	saved, err := st.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved != nil {
		t.Errorf("정리되지 않은 기록: %+v", saved)
	}
}
