package domain

import "time"

// PriceSample은 피드에서 관측한 한 시점의 가격 정보를 표현합니다
type PriceSample struct {
	Time      time.Time // 관측 시각
	LastPrice float64   // 최근 체결가
	BestBid   float64   // 최우선 매수 호가
	BestAsk   float64   // 최우선 매도 호가
	Symbol    string    // 심볼 (예: BTCUSDT)
}

// IsValid는 샘플이 유효한 가격을 담고 있는지 확인합니다
func (s PriceSample) IsValid() bool {
	return s.LastPrice > 0
}

// BookLevel은 호가창의 한 단계를 표현합니다
type BookLevel struct {
	Price    float64 // 호가
	Quantity float64 // 잔량
}

// OrderBookSnapshot은 특정 시점의 호가창 스냅샷을 표현합니다
type OrderBookSnapshot struct {
	Symbol string      // 심볼
	Time   time.Time   // 스냅샷 시각
	Bids   []BookLevel // 매수 호가 (가격 내림차순)
	Asks   []BookLevel // 매도 호가 (가격 오름차순)
}

// BestBid는 최우선 매수 호가를 반환합니다
func (b OrderBookSnapshot) BestBid() (BookLevel, bool) {
	if len(b.Bids) == 0 {
		return BookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk는 최우선 매도 호가를 반환합니다
func (b OrderBookSnapshot) BestAsk() (BookLevel, bool) {
	if len(b.Asks) == 0 {
		return BookLevel{}, false
	}
	return b.Asks[0], true
}
