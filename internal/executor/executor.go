package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/exchange"
	"github.com/assist-by/crossline/internal/monitor"
	"github.com/assist-by/crossline/internal/optimizer"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	maxBackoffDelay     = 30 * time.Second
	orderBookDepth      = 5
)

// Config는 주문 실행 설정을 정의합니다
type Config struct {
	MaxAttempts    int           // 일시적 에러 재시도 횟수 (지정가 시도 횟수와 동일한 예산)
	AttemptTimeout time.Duration // 시도당 체결 대기 시간
	BackoffBase    time.Duration // 재시도 백오프 기본 간격
	Leverage       int           // 설정할 레버리지
	PollInterval   time.Duration // 주문 상태 폴링 간격 (0이면 기본값)
}

// Executor는 거래소에 주문을 제출하고 체결을 확인합니다.
// 거래소 세션은 이 구조체를 통해서만 접근하며, 일시적 에러는
// 지수 백오프로 재시도하고 거부된 주문은 즉시 반환합니다.
type Executor struct {
	exchange exchange.Exchange
	config   Config

	marginReady map[string]bool // 심볼별 마진 모드 설정 완료 여부
}

// NewExecutor는 새로운 주문 실행기를 생성합니다
func NewExecutor(ex exchange.Exchange, config Config) *Executor {
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	return &Executor{
		exchange:    ex,
		config:      config,
		marginReady: make(map[string]bool),
	}
}

// EnsureMarginMode는 격리 마진과 레버리지를 설정합니다.
// 세션의 첫 주문 전에 한 번 호출하면 되며, 이미 설정된 심볼은 건너뜁니다.
// "변경 없음" 응답은 정상으로 처리하고, 그 외 실패는 MarginModeError로 감쌉니다.
func (e *Executor) EnsureMarginMode(ctx context.Context, symbol string) error {
	if e.marginReady[symbol] {
		return nil
	}

	err := e.withRetry(ctx, fmt.Sprintf("%s 마진 타입 설정", symbol), func() error {
		return e.exchange.SetMarginType(ctx, symbol, domain.Isolated)
	})
	if err != nil && !exchange.IsAPIErrorCode(err, domain.ErrCodeMarginModeNoChange) {
		return &MarginModeError{Symbol: symbol, Err: err}
	}

	err = e.withRetry(ctx, fmt.Sprintf("%s 레버리지 설정", symbol), func() error {
		return e.exchange.SetLeverage(ctx, symbol, e.config.Leverage)
	})
	if err != nil {
		return &MarginModeError{Symbol: symbol, Err: err}
	}

	e.marginReady[symbol] = true
	log.Printf("%s 격리 마진 / 레버리지 %dx 설정 완료", symbol, e.config.Leverage)
	return nil
}

// Submit은 주문을 제출합니다. 클라이언트 주문 ID가 비어 있으면 새로 부여하여
// 재시도 중 네트워크 에러가 나도 거래소 측에서 중복 주문이 되지 않게 합니다.
func (e *Executor) Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderResponse, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}

	var resp *domain.OrderResponse
	err := e.withRetry(ctx, fmt.Sprintf("%s %s 주문 제출", req.Symbol, req.Side), func() error {
		r, err := e.exchange.PlaceOrder(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Await는 주문이 종결 상태에 도달하거나 timeout이 지날 때까지 상태를 폴링합니다.
// 타임아웃 시에는 마지막으로 확인한 응답을 에러 없이 반환합니다 (미체결 상태 그대로).
func (e *Executor) Await(ctx context.Context, symbol string, orderID int64, timeout time.Duration) (*domain.OrderResponse, error) {
	deadline := time.Now().Add(timeout)

	var last *domain.OrderResponse
	for {
		resp, err := e.exchange.GetOrder(ctx, symbol, orderID)
		if err != nil {
			if !IsRetryableError(err) {
				return last, classify("주문 상태 조회", err)
			}
			// 일시적 조회 실패는 다음 폴링에서 만회
			log.Printf("주문 상태 조회 실패 (재시도 예정): %v", err)
		} else {
			last = resp
			if resp.Status.IsTerminal() {
				return resp, nil
			}
		}

		if time.Now().After(deadline) {
			return last, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(e.config.PollInterval):
		}
	}
}

// Cancel은 주문을 취소하고 최종 상태를 반환합니다.
// 취소 요청과 체결이 경합한 경우(이미 체결/종결된 주문) 거부 응답을
// 에러로 취급하지 않고 최종 주문 상태를 조회해 반환합니다.
func (e *Executor) Cancel(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error) {
	err := e.withRetry(ctx, fmt.Sprintf("%s 주문 취소", symbol), func() error {
		return e.exchange.CancelOrder(ctx, symbol, orderID)
	})

	var rejected *RejectedError
	if err != nil && !errors.As(err, &rejected) {
		return nil, err
	}

	var final *domain.OrderResponse
	queryErr := e.withRetry(ctx, fmt.Sprintf("%s 취소 후 상태 조회", symbol), func() error {
		r, err := e.exchange.GetOrder(ctx, symbol, orderID)
		if err != nil {
			return err
		}
		final = r
		return nil
	})
	if queryErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, queryErr
	}

	if err != nil && !final.Status.IsTerminal() {
		// 취소가 거부됐는데 주문이 아직 살아 있으면 실패로 처리
		return final, err
	}
	return final, nil
}

// Replace는 기존 주문을 취소하고 새 의도로 다시 제출합니다.
// 취소 시점에 기존 주문이 이미 전량 체결되어 있었다면
// 새 주문을 내지 않고 체결된 응답을 반환합니다.
func (e *Executor) Replace(ctx context.Context, symbol string, orderID int64, req domain.OrderRequest) (*domain.OrderResponse, error) {
	cancelled, err := e.Cancel(ctx, symbol, orderID)
	if err != nil {
		return nil, err
	}
	if cancelled != nil && cancelled.Status == domain.OrderFilled {
		return cancelled, nil
	}
	return e.Submit(ctx, req)
}

// ExecuteEntry는 돌파 이벤트에 대한 진입을 끝까지 책임집니다.
// 최신 호가창으로 지정가를 계산해 제출하고 시도당 대기 시간 동안 체결을
// 기다리며, 미체결이면 취소 후 재계산합니다. 시도 횟수가 소진되면
// 시장가로 전환하여 진입을 보장합니다. 모든 시도에서 발생한
// 부분 체결을 누적해 반환합니다.
func (e *Executor) ExecuteEntry(ctx context.Context, symbol string, opt *optimizer.Optimizer, event *monitor.CrossingEvent) ([]domain.Fill, error) {
	info := opt.Info()

	var fills []domain.Fill
	var filledQty float64

	for attempt := 1; attempt <= opt.MaxAttempts()+1; attempt++ {
		var book domain.OrderBookSnapshot
		if attempt <= opt.MaxAttempts() {
			err := e.withRetry(ctx, fmt.Sprintf("%s 호가창 조회", symbol), func() error {
				b, err := e.exchange.GetOrderBook(ctx, symbol, orderBookDepth)
				if err != nil {
					return err
				}
				book = b
				return nil
			})
			if err != nil {
				return fills, err
			}
		}

		req, err := opt.Optimize(event, book, attempt)
		if err != nil {
			return fills, err
		}

		// 이전 시도의 부분 체결만큼 잔여 수량을 줄임
		if filledQty > 0 {
			remaining := domain.AdjustQuantity(req.Quantity-filledQty, info.StepSize, info.QuantityPrecision)
			if remaining <= 0 {
				return fills, nil
			}
			req.Quantity = remaining
		}

		resp, err := e.Submit(ctx, req)
		if err != nil {
			return fills, err
		}
		log.Printf("%s 진입 주문 제출 (시도 %d, %s, 수량: %.8f, 가격: %.8f)",
			symbol, attempt, req.Type, req.Quantity, req.Price)

		final, err := e.Await(ctx, symbol, resp.OrderID, e.config.AttemptTimeout)
		if err != nil {
			// 종료 신호 등으로 대기가 끊기면 미체결 주문을 남기지 않고 정리
			e.cancelDetached(symbol, resp.OrderID)
			return fills, err
		}

		if final != nil {
			switch final.Status {
			case domain.OrderFilled:
				fills = appendFill(fills, final)
				return fills, nil
			case domain.OrderRejected:
				return fills, &RejectedError{Op: "진입 주문", Err: ErrOrderRejected}
			}
		}

		// 대기 시간 내 미체결: 취소하고 부분 체결량을 회수
		cancelled, err := e.Cancel(ctx, symbol, resp.OrderID)
		if err != nil {
			return fills, err
		}
		if cancelled != nil {
			if cancelled.Status == domain.OrderFilled {
				fills = appendFill(fills, cancelled)
				return fills, nil
			}
			if cancelled.ExecutedQuantity > 0 {
				fills = appendFill(fills, cancelled)
				filledQty += cancelled.ExecutedQuantity
				log.Printf("%s 부분 체결 %.8f @ %.8f 후 취소, 잔여분 재시도",
					symbol, cancelled.ExecutedQuantity, cancelled.AvgPrice)
			}
		}
	}

	return fills, ErrEntryNotFilled
}

// cancelDetached는 호출 컨텍스트와 무관하게 주문 취소를 시도합니다.
// 프로세스 종료 경로에서 미체결 주문이 거래소에 남는 것을 막기 위한 최선의 노력입니다.
func (e *Executor) cancelDetached(symbol string, orderID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.exchange.CancelOrder(ctx, symbol, orderID); err != nil {
		if !exchange.IsAPIErrorCode(err, -2011) { // 이미 종결된 주문은 무시
			log.Printf("%s 주문 %d 정리 실패: %v", symbol, orderID, err)
		}
	}
}

// appendFill은 주문 응답의 체결분을 체결 목록에 추가합니다
func appendFill(fills []domain.Fill, resp *domain.OrderResponse) []domain.Fill {
	if resp.ExecutedQuantity <= 0 {
		return fills
	}
	price := resp.AvgPrice
	if price <= 0 {
		price = resp.Price
	}
	return append(fills, domain.Fill{
		Price:    price,
		Quantity: resp.ExecutedQuantity,
		Time:     resp.CreateTime,
	})
}

// withRetry는 재시도 로직을 구현한 래퍼 함수입니다.
// 일시적 에러만 지수 백오프로 재시도하며, 대기 간격은 단조 증가합니다.
// 재시도 예산이 소진되면 ErrRetryExhausted로 승격시켜 반환합니다.
func (e *Executor) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	delay := e.config.BackoffBase

	for attempt := 0; attempt <= e.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			// 재시도가 필요 없는 오류는 바로 반환
			log.Printf("%s 실패 (재시도 불필요): %v", operation, err)
			return classify(operation, err)
		}

		if attempt == e.config.MaxAttempts {
			break
		}

		log.Printf("%s 실패 (attempt %d/%d): %v",
			operation, attempt+1, e.config.MaxAttempts, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			// 대기 시간을 증가시키되, 최대 대기 시간을 넘지 않도록 함
			delay *= 2
			if delay > maxBackoffDelay {
				delay = maxBackoffDelay
			}
		}
	}

	return fmt.Errorf("%w (%s): %v", ErrRetryExhausted, operation, lastErr)
}
