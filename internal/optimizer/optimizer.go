package optimizer

import (
	"fmt"

	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/monitor"
)

// Error 타입들은 주문 의도 계산 중 발생할 수 있는 에러를 정의합니다
var (
	ErrInvalidOrderSize = fmt.Errorf("계산된 주문 수량이 최소 단위 미만입니다")
	ErrEmptyBook        = fmt.Errorf("호가창이 비어 있습니다")
)

// Config는 가격 최적화 설정을 정의합니다
type Config struct {
	MaxAttempts   int     // 지정가 시도 횟수 (초과 시 즉시 체결 주문으로 전환)
	OffsetTicks   int     // 수동적 호가에서 임계가 쪽으로 더할 틱 수
	PositionValue float64 // 진입 명목 가치 (USDT)
}

// Optimizer는 돌파 이벤트와 호가창 스냅샷으로부터 진입 주문 의도를 계산합니다.
// 시장가로 스프레드를 지불하는 대신 수동적 호가 근처의 지정가를 제안하고,
// 시도 횟수가 소진되면 진입을 보장하기 위해 시장가로 전환합니다.
// 주문 제출은 하지 않습니다. 부수 효과 없이 주문 의도만 반환합니다.
type Optimizer struct {
	config Config
	info   domain.SymbolInfo
}

// NewOptimizer는 새로운 가격 최적화기를 생성합니다
func NewOptimizer(config Config, info domain.SymbolInfo) *Optimizer {
	return &Optimizer{
		config: config,
		info:   info,
	}
}

// Info는 최적화에 사용 중인 심볼 거래 정보를 반환합니다
func (o *Optimizer) Info() domain.SymbolInfo {
	return o.info
}

// MaxAttempts는 설정된 지정가 시도 횟수를 반환합니다
func (o *Optimizer) MaxAttempts() int {
	return o.config.MaxAttempts
}

// Optimize는 attempt번째 시도(1부터 시작)의 주문 의도를 계산합니다.
// MaxAttempts 이내에서는 틱/로트 단위로 양자화된 지정가 주문을,
// 초과하면 즉시 체결 가능한 시장가 주문을 반환합니다.
func (o *Optimizer) Optimize(event *monitor.CrossingEvent, book domain.OrderBookSnapshot, attempt int) (domain.OrderRequest, error) {
	side := event.Direction.EntrySide()

	// 시도 횟수 소진: 진입 보장을 위한 시장가 전환
	if attempt > o.config.MaxAttempts {
		quantity, err := o.quantity(event.TriggerPrice)
		if err != nil {
			return domain.OrderRequest{}, err
		}
		return domain.OrderRequest{
			Symbol:   o.info.Symbol,
			Side:     side,
			Type:     domain.Market,
			Quantity: quantity,
		}, nil
	}

	price, err := o.limitPrice(side, book)
	if err != nil {
		return domain.OrderRequest{}, err
	}

	quantity, err := o.quantity(price)
	if err != nil {
		return domain.OrderRequest{}, err
	}

	return domain.OrderRequest{
		Symbol:      o.info.Symbol,
		Side:        side,
		Type:        domain.Limit,
		Quantity:    quantity,
		Price:       price,
		TimeInForce: domain.GTC,
	}, nil
}

// limitPrice는 수동적 호가에 오프셋을 더한 지정가를 계산합니다.
// 매수는 최우선 매수 호가 기준으로 위로, 매도는 최우선 매도 호가 기준으로
// 아래로 이동하되, 반대편 호가를 넘지 않도록 한 틱 안쪽에서 자릅니다.
func (o *Optimizer) limitPrice(side domain.OrderSide, book domain.OrderBookSnapshot) (float64, error) {
	bid, bidOK := book.BestBid()
	ask, askOK := book.BestAsk()
	if !bidOK || !askOK {
		return 0, ErrEmptyBook
	}

	tick := o.info.TickSize
	offset := float64(o.config.OffsetTicks) * tick

	var price float64
	if side == domain.Buy {
		price = bid.Price + offset
		if ceiling := ask.Price - tick; price > ceiling {
			price = ceiling
		}
	} else {
		price = ask.Price - offset
		if floor := bid.Price + tick; price < floor {
			price = floor
		}
	}

	price = domain.AdjustPrice(price, tick, o.info.PricePrecision)
	if price <= 0 {
		return 0, fmt.Errorf("유효하지 않은 지정가 계산 결과: %.8f", price)
	}

	// 매도 지정가가 양자화로 매수 호가까지 내려왔으면 한 틱 위로 복원
	if side == domain.Sell && price <= bid.Price {
		price = domain.AdjustPrice(bid.Price, tick, o.info.PricePrecision) + tick
	}

	return price, nil
}

// quantity는 설정된 명목 가치에 맞는 주문 수량을 계산합니다.
// 수수료 여유분을 더하고 거래소 최소 주문 가치를 보장한 뒤
// 로트 단위로 내림합니다. 내림 결과가 0이면 ErrInvalidOrderSize를 반환합니다.
func (o *Optimizer) quantity(price float64) (float64, error) {
	if price <= 0 {
		return 0, ErrInvalidOrderSize
	}

	// 수수료 및 체결 가격 변동 대비 0.5% 여유분
	raw := o.config.PositionValue * 1.005 / price

	// 최소 주문 가치 미달이면 수량을 끌어올림
	if o.info.MinNotional > 0 && raw*price < o.info.MinNotional {
		raw = o.info.MinNotional / price
	}

	quantity := domain.AdjustQuantity(raw, o.info.StepSize, o.info.QuantityPrecision)
	if quantity <= 0 {
		return 0, ErrInvalidOrderSize
	}

	// 내림으로 최소 주문 가치가 다시 깨지면 한 스텝 보충
	if o.info.MinNotional > 0 && quantity*price < o.info.MinNotional {
		quantity = domain.AdjustQuantity(quantity+o.info.StepSize, o.info.StepSize, o.info.QuantityPrecision)
	}

	return quantity, nil
}
