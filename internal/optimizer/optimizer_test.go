package optimizer

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/monitor"
)

func testSymbolInfo() domain.SymbolInfo {
	return domain.SymbolInfo{
		Symbol:            "BTCUSDT",
		StepSize:          0.001,
		TickSize:          0.01,
		MinNotional:       10.0,
		PricePrecision:    2,
		QuantityPrecision: 3,
	}
}

func testEvent(direction domain.Direction, trigger float64) *monitor.CrossingEvent {
	return &monitor.CrossingEvent{
		Time:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TriggerPrice:  trigger,
		PreviousPrice: trigger - 0.05,
		Direction:     direction,
	}
}

func testBook(bid, ask float64) domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Symbol: "BTCUSDT",
		Bids:   []domain.BookLevel{{Price: bid, Quantity: 5}},
		Asks:   []domain.BookLevel{{Price: ask, Quantity: 5}},
	}
}

func TestOptimizer_Optimize(t *testing.T) {
	tests := []struct {
		name      string
		direction domain.Direction
		bid, ask  float64
		offset    int
		wantPrice float64
		wantSide  domain.OrderSide
	}{
		{
			name:      "매수 지정가는 매수 호가에 오프셋을 더한 값",
			direction: domain.Above,
			bid:       9.98, ask: 10.05,
			offset:    1,
			wantPrice: 9.99,
			wantSide:  domain.Buy,
		},
		{
			name:      "매수 지정가는 매도 호가를 넘지 않음",
			direction: domain.Above,
			bid:       9.99, ask: 10.01,
			offset:    5,
			wantPrice: 10.00, // ask - 1틱에서 잘림
			wantSide:  domain.Buy,
		},
		{
			name:      "매도 지정가는 매도 호가에서 오프셋만큼 아래",
			direction: domain.Below,
			bid:       37.55, ask: 37.62,
			offset:    1,
			wantPrice: 37.61,
			wantSide:  domain.Sell,
		},
		{
			name:      "매도 지정가는 매수 호가를 넘지 않음",
			direction: domain.Below,
			bid:       37.59, ask: 37.61,
			offset:    5,
			wantPrice: 37.60, // bid + 1틱에서 잘림
			wantSide:  domain.Sell,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptimizer(Config{
				MaxAttempts:   3,
				OffsetTicks:   tt.offset,
				PositionValue: 100.0,
			}, testSymbolInfo())

			req, err := o.Optimize(testEvent(tt.direction, 10.00), testBook(tt.bid, tt.ask), 1)
			if err != nil {
				t.Fatalf("Optimize() error = %v", err)
			}

			if req.Type != domain.Limit {
				t.Errorf("Type = %s, want LIMIT", req.Type)
			}
			if req.Side != tt.wantSide {
				t.Errorf("Side = %s, want %s", req.Side, tt.wantSide)
			}
			if !almostEqual(req.Price, tt.wantPrice) {
				t.Errorf("Price = %.4f, want %.4f", req.Price, tt.wantPrice)
			}
			if req.TimeInForce != domain.GTC {
				t.Errorf("TimeInForce = %s, want GTC", req.TimeInForce)
			}
		})
	}
}

// TestOptimizer_MarketableFallback은 시도 소진 후 시장가로 전환되는지 확인합니다
func TestOptimizer_MarketableFallback(t *testing.T) {
	o := NewOptimizer(Config{
		MaxAttempts:   3,
		OffsetTicks:   1,
		PositionValue: 100.0,
	}, testSymbolInfo())

	event := testEvent(domain.Above, 10.00)
	book := testBook(9.98, 10.02)

	// MaxAttempts 이내에는 지정가
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := o.Optimize(event, book, attempt)
		if err != nil {
			t.Fatalf("attempt %d: %v", attempt, err)
		}
		if req.Type != domain.Limit {
			t.Errorf("attempt %d: Type = %s, want LIMIT", attempt, req.Type)
		}
	}

	// 소진 후에는 진입 보장을 위한 시장가
	req, err := o.Optimize(event, book, 4)
	if err != nil {
		t.Fatalf("fallback attempt: %v", err)
	}
	if req.Type != domain.Market {
		t.Errorf("fallback Type = %s, want MARKET", req.Type)
	}
	if req.Quantity <= 0 {
		t.Errorf("fallback Quantity = %.6f, want > 0", req.Quantity)
	}
}

// TestOptimizer_Quantization은 틱/로트 양자화 동작을 확인합니다
func TestOptimizer_Quantization(t *testing.T) {
	info := testSymbolInfo()
	info.MinNotional = 0

	t.Run("가격은 틱 단위로 내림", func(t *testing.T) {
		o := NewOptimizer(Config{MaxAttempts: 3, OffsetTicks: 0, PositionValue: 100.0}, info)

		// 호가가 틱에 어긋나 있어도 제출 가격은 10.00으로 정렬됨
		req, err := o.Optimize(testEvent(domain.Above, 10.00), testBook(10.0034, 10.05), 1)
		if err != nil {
			t.Fatalf("Optimize() error = %v", err)
		}
		if !almostEqual(req.Price, 10.00) {
			t.Errorf("Price = %.4f, want 10.00", req.Price)
		}
	})

	t.Run("수량이 0으로 내림되면 에러", func(t *testing.T) {
		// 0.005 USDT / 10 USDT ≈ 0.0005 → 0.001 단위로 내림하면 0
		o := NewOptimizer(Config{MaxAttempts: 3, OffsetTicks: 0, PositionValue: 0.005}, info)

		_, err := o.Optimize(testEvent(domain.Above, 10.00), testBook(10.00, 10.02), 1)
		if !errors.Is(err, ErrInvalidOrderSize) {
			t.Errorf("error = %v, want ErrInvalidOrderSize", err)
		}
	})

	t.Run("최소 주문 가치 미달이면 수량을 끌어올림", func(t *testing.T) {
		withNotional := testSymbolInfo() // MinNotional = 10
		o := NewOptimizer(Config{MaxAttempts: 3, OffsetTicks: 0, PositionValue: 5.0}, withNotional)

		req, err := o.Optimize(testEvent(domain.Above, 10.00), testBook(10.00, 10.02), 1)
		if err != nil {
			t.Fatalf("Optimize() error = %v", err)
		}
		if notional := req.Quantity * req.Price; notional < withNotional.MinNotional-0.02 {
			t.Errorf("notional = %.4f, want >= %.2f", notional, withNotional.MinNotional)
		}
	})
}

// TestOptimizer_EmptyBook은 빈 호가창 처리를 확인합니다
func TestOptimizer_EmptyBook(t *testing.T) {
	o := NewOptimizer(Config{MaxAttempts: 3, OffsetTicks: 1, PositionValue: 100.0}, testSymbolInfo())

	_, err := o.Optimize(testEvent(domain.Above, 10.00), domain.OrderBookSnapshot{}, 1)
	if !errors.Is(err, ErrEmptyBook) {
		t.Errorf("error = %v, want ErrEmptyBook", err)
	}
}

// almostEqual은 부동소수점 비교를 위한 헬퍼 함수입니다
func almostEqual(a, b float64) bool {
	const epsilon = 0.0001
	return math.Abs(a-b) < epsilon
}
