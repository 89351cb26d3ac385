package domain

import (
	"math"
	"time"
)

// OrderRequest는 주문 요청 정보를 표현합니다
type OrderRequest struct {
	Symbol        string    // 심볼 (예: BTCUSDT)
	Side          OrderSide // 매수/매도
	Type          OrderType // 주문 유형 (시장가, 지정가)
	Quantity      float64   // 수량
	Price         float64   // 지정가 (Limit 주문 시)
	TimeInForce   string    // 주문 유효 기간 (GTC, IOC 등)
	ReduceOnly    bool      // 청산 전용 주문 여부
	ClientOrderID string    // 클라이언트 측 주문 ID
}

// OrderResponse는 주문 응답을 표현합니다
type OrderResponse struct {
	OrderID          int64       // 주문 ID
	Symbol           string      // 심볼
	Status           OrderStatus // 주문 상태
	ClientOrderID    string      // 클라이언트 측 주문 ID
	Price            float64     // 주문 가격
	AvgPrice         float64     // 평균 체결 가격
	OrigQuantity     float64     // 원래 주문 수량
	ExecutedQuantity float64     // 체결된 수량
	Side             OrderSide   // 매수/매도
	Type             OrderType   // 주문 유형
	CreateTime       time.Time   // 주문 생성 시간
}

// RemainingQuantity는 미체결 잔량을 반환합니다
func (r OrderResponse) RemainingQuantity() float64 {
	return r.OrigQuantity - r.ExecutedQuantity
}

// Fill은 주문에서 발생한 개별 체결을 표현합니다
type Fill struct {
	Price    float64   // 체결가
	Quantity float64   // 체결 수량
	Time     time.Time // 체결 시각
}

// SymbolInfo는 심볼의 거래 정보를 나타냅니다
type SymbolInfo struct {
	Symbol            string  // 심볼 이름 (예: BTCUSDT)
	StepSize          float64 // 수량 최소 단위 (예: 0.001 BTC)
	TickSize          float64 // 가격 최소 단위 (예: 0.01 USDT)
	MinNotional       float64 // 최소 주문 가치 (예: 10 USDT)
	PricePrecision    int     // 가격 소수점 자릿수
	QuantityPrecision int     // 수량 소수점 자릿수
}

// quantizeEpsilon은 내림 전 더하는 부동소수점 오차 보정값입니다 (틱/스텝의 백만분의 일)
const quantizeEpsilon = 1e-6

// AdjustPrice는 가격을 틱 사이즈에 맞게 내림 조정합니다
func AdjustPrice(price float64, tickSize float64, precision int) float64 {
	if tickSize == 0 {
		return price // tickSize가 0이면 조정 불필요
	}

	// tickSize로 나누어 떨어지도록 조정
	ticks := math.Floor(price/tickSize + quantizeEpsilon)
	adjustedPrice := ticks * tickSize

	// 정밀도에 맞게 내림
	scale := math.Pow(10, float64(precision))
	return math.Floor(adjustedPrice*scale+quantizeEpsilon) / scale
}

// AdjustQuantity는 수량을 최소 단위(stepSize)에 맞게 내림 조정합니다
func AdjustQuantity(quantity float64, stepSize float64, precision int) float64 {
	if stepSize == 0 {
		return quantity // stepSize가 0이면 조정 불필요
	}

	// stepSize로 나누어 떨어지도록 조정
	steps := math.Floor(quantity/stepSize + quantizeEpsilon)
	adjustedQuantity := steps * stepSize

	// 정밀도에 맞게 내림
	scale := math.Pow(10, float64(precision))
	return math.Floor(adjustedQuantity*scale+quantizeEpsilon) / scale
}
