// Package paper는 실주문 없이 체결을 시뮬레이션하는 거래소 구현을 제공합니다.
// DRY_RUN 모드와 봇 테스트에서 사용합니다.
package paper

import (
	"context"
	"sync"
	"time"

	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/exchange"
)

// Exchange는 메모리 안에서 주문을 체결하는 페이퍼 거래소입니다.
// 시세 조회는 내부 거래소(market)에 위임할 수 있고, market이 nil이면
// SetSample로 주입된 샘플을 사용합니다. 시장가와 즉시 체결 가능한
// 지정가는 바로 체결되고, 나머지 지정가는 이후 샘플이 가격에 닿으면
// 체결됩니다.
type Exchange struct {
	market exchange.Exchange // 시세 위임 대상 (옵션)
	info   domain.SymbolInfo

	mu       sync.Mutex
	sample   domain.PriceSample
	orders   map[int64]*domain.OrderResponse
	position *domain.Position
	leverage int
	nextID   int64
}

// NewExchange는 새로운 페이퍼 거래소를 생성합니다
func NewExchange(market exchange.Exchange, info domain.SymbolInfo) *Exchange {
	return &Exchange{
		market:   market,
		info:     info,
		orders:   make(map[int64]*domain.OrderResponse),
		leverage: 1,
		nextID:   1,
	}
}

// SetSample은 시뮬레이션에 사용할 가격 샘플을 주입하고
// 대기 중인 지정가 주문의 체결을 시도합니다
func (e *Exchange) SetSample(sample domain.PriceSample) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sample = sample
	e.matchOpenOrders()
}

// GetServerTime은 현재 시간을 반환합니다
func (e *Exchange) GetServerTime(ctx context.Context) (time.Time, error) {
	if e.market != nil {
		return e.market.GetServerTime(ctx)
	}
	return time.Now(), nil
}

// SyncTime은 페이퍼 거래소에서는 동기화할 것이 없습니다
func (e *Exchange) SyncTime(ctx context.Context) error {
	if e.market != nil {
		return e.market.SyncTime(ctx)
	}
	return nil
}

// GetSymbolInfo는 심볼 거래 정보를 반환합니다
func (e *Exchange) GetSymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	if e.market != nil {
		return e.market.GetSymbolInfo(ctx, symbol)
	}
	info := e.info
	return &info, nil
}

// GetPriceSample은 시세를 조회합니다. 내부 거래소가 있으면 실제 시세를
// 가져와 시뮬레이션 상태에도 반영합니다.
func (e *Exchange) GetPriceSample(ctx context.Context, symbol string) (domain.PriceSample, error) {
	if e.market != nil {
		sample, err := e.market.GetPriceSample(ctx, symbol)
		if err != nil {
			return domain.PriceSample{}, err
		}
		e.SetSample(sample)
		return sample, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sample, nil
}

// GetOrderBook은 호가창을 조회합니다. 내부 거래소가 없으면
// 마지막 샘플의 최우선 호가로 한 단계짜리 호가창을 만듭니다.
func (e *Exchange) GetOrderBook(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error) {
	if e.market != nil {
		return e.market.GetOrderBook(ctx, symbol, limit)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bid, ask := e.sample.BestBid, e.sample.BestAsk
	if bid <= 0 {
		bid = e.sample.LastPrice
	}
	if ask <= 0 {
		ask = e.sample.LastPrice
	}
	return domain.OrderBookSnapshot{
		Symbol: symbol,
		Time:   e.sample.Time,
		Bids:   []domain.BookLevel{{Price: bid, Quantity: 1000}},
		Asks:   []domain.BookLevel{{Price: ask, Quantity: 1000}},
	}, nil
}

// GetPosition은 시뮬레이션 포지션을 반환합니다 (없으면 nil)
func (e *Exchange) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.position == nil {
		return nil, nil
	}
	pos := *e.position
	return &pos, nil
}

// GetOrder는 주문 상태를 조회합니다
func (e *Exchange) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return nil, &exchange.APIError{Code: -2013, Message: "order does not exist", HTTPStatus: 400}
	}
	cp := *order
	return &cp, nil
}

// PlaceOrder는 주문을 접수합니다. 시장가와 즉시 체결 가능한 지정가는
// 바로 체결 처리하고, 나머지는 미체결로 보관합니다.
func (e *Exchange) PlaceOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	resp := &domain.OrderResponse{
		OrderID:       e.nextID,
		Symbol:        order.Symbol,
		Status:        domain.OrderOpen,
		ClientOrderID: order.ClientOrderID,
		Price:         order.Price,
		OrigQuantity:  order.Quantity,
		Side:          order.Side,
		Type:          order.Type,
		CreateTime:    e.now(),
	}
	e.nextID++
	e.orders[resp.OrderID] = resp

	if order.Type == domain.Market {
		e.fill(resp, e.marketPrice(order.Side), order.ReduceOnly)
		return copyOrder(resp), nil
	}

	if e.marketable(order.Side, order.Price) {
		e.fill(resp, order.Price, order.ReduceOnly)
	}
	return copyOrder(resp), nil
}

// CancelOrder는 미체결 주문을 취소합니다
func (e *Exchange) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok || order.Status.IsTerminal() {
		return &exchange.APIError{Code: -2011, Message: "unknown order sent", HTTPStatus: 400}
	}
	order.Status = domain.OrderCancelled
	return nil
}

// SetLeverage는 시뮬레이션 레버리지를 기록합니다
func (e *Exchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leverage = leverage
	return nil
}

// SetMarginType은 페이퍼 거래소에서는 항상 성공합니다
func (e *Exchange) SetMarginType(ctx context.Context, symbol string, mode domain.MarginMode) error {
	return nil
}

// marketPrice는 시장가 주문의 체결가를 결정합니다
func (e *Exchange) marketPrice(side domain.OrderSide) float64 {
	if side == domain.Buy && e.sample.BestAsk > 0 {
		return e.sample.BestAsk
	}
	if side == domain.Sell && e.sample.BestBid > 0 {
		return e.sample.BestBid
	}
	return e.sample.LastPrice
}

// marketable은 지정가가 현재 호가에서 즉시 체결 가능한지 확인합니다
func (e *Exchange) marketable(side domain.OrderSide, price float64) bool {
	if side == domain.Buy {
		ask := e.sample.BestAsk
		if ask <= 0 {
			ask = e.sample.LastPrice
		}
		return ask > 0 && price >= ask
	}
	bid := e.sample.BestBid
	if bid <= 0 {
		bid = e.sample.LastPrice
	}
	return bid > 0 && price <= bid
}

// matchOpenOrders는 새 샘플 기준으로 미체결 지정가의 체결을 시도합니다
func (e *Exchange) matchOpenOrders() {
	for _, order := range e.orders {
		if order.Status != domain.OrderOpen || order.Type != domain.Limit {
			continue
		}
		if e.marketable(order.Side, order.Price) {
			e.fill(order, order.Price, false)
		}
	}
}

// fill은 주문을 전량 체결 처리하고 포지션에 반영합니다
func (e *Exchange) fill(order *domain.OrderResponse, price float64, reduceOnly bool) {
	order.Status = domain.OrderFilled
	order.AvgPrice = price
	order.ExecutedQuantity = order.OrigQuantity

	if reduceOnly {
		e.reducePosition(order.ExecutedQuantity)
		return
	}
	e.applyFill(order.Side, order.ExecutedQuantity, price)
}

// applyFill은 체결을 포지션에 반영합니다 (신규 진입 또는 증액)
func (e *Exchange) applyFill(side domain.OrderSide, quantity, price float64) {
	posSide := domain.LongPosition
	if side == domain.Sell {
		posSide = domain.ShortPosition
	}

	if e.position == nil {
		e.position = &domain.Position{
			Symbol:     e.sample.Symbol,
			Side:       posSide,
			Quantity:   quantity,
			EntryPrice: price,
			Leverage:   e.leverage,
			OpenedAt:   e.now(),
			Status:     domain.PositionOpen,
		}
		return
	}

	if e.position.Side == posSide {
		total := e.position.Quantity + quantity
		e.position.EntryPrice = (e.position.EntryPrice*e.position.Quantity + price*quantity) / total
		e.position.Quantity = total
		return
	}

	// 반대 방향 체결은 축소로 처리
	e.reducePosition(quantity)
}

// reducePosition은 포지션을 줄이고 전량 청산되면 제거합니다
func (e *Exchange) reducePosition(quantity float64) {
	if e.position == nil {
		return
	}
	e.position.Quantity -= quantity
	if e.position.Quantity <= 0 {
		e.position = nil
	}
}

func (e *Exchange) now() time.Time {
	if !e.sample.Time.IsZero() {
		return e.sample.Time
	}
	return time.Now()
}

func copyOrder(order *domain.OrderResponse) *domain.OrderResponse {
	cp := *order
	return &cp
}
