package domain

import "time"

// Position은 봇이 관리하는 단일 포지션의 생명주기 상태를 표현합니다.
// 인스턴스당 CLOSED가 아닌 포지션은 항상 최대 1개만 존재합니다.
type Position struct {
	Symbol     string         // 심볼 (예: BTCUSDT)
	Side       PositionSide   // 롱/숏
	Quantity   float64        // 포지션 수량 (절대값)
	EntryPrice float64        // 체결 가중 평균 진입가
	Leverage   int            // 레버리지
	OpenedAt   time.Time      // 진입 시각
	Status     PositionStatus // OPENING → OPEN → CLOSING → CLOSED
}

// IsOpen은 포지션이 청산 가능한 상태인지 확인합니다
func (p *Position) IsOpen() bool {
	return p != nil && p.Status == PositionOpen
}

// IsActive는 포지션이 아직 종료되지 않았는지 확인합니다
func (p *Position) IsActive() bool {
	return p != nil && p.Status != PositionClosed
}

// Notional은 포지션의 명목 가치를 반환합니다
func (p *Position) Notional() float64 {
	if p == nil {
		return 0
	}
	return p.Quantity * p.EntryPrice
}
