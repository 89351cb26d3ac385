package position

import (
	"sync"
	"time"

	"github.com/assist-by/crossline/internal/domain"
)

// ExitDecision은 청산이 필요할 때 관리자가 반환하는 결정입니다
type ExitDecision struct {
	Reason  string              // 청산 사유 (로그/알림용)
	Request domain.OrderRequest // 제출할 청산 주문 (시장가, 청산 전용)
}

// Manager는 단일 포지션의 생애주기를 관리합니다.
// 상태 전이는 제어 루프만 수행하지만, 상태 보고 고루틴이 스냅샷을
// 동시에 읽으므로 내부 상태는 뮤텍스로 보호합니다.
// 활성(미청산) 포지션은 항상 최대 하나입니다.
type Manager struct {
	symbol    string
	direction domain.Direction
	threshold float64

	mu       sync.Mutex
	position *domain.Position
	fills    []domain.Fill
}

// NewManager는 새로운 포지션 관리자를 생성합니다
func NewManager(symbol string, direction domain.Direction, threshold float64) *Manager {
	return &Manager{
		symbol:    symbol,
		direction: direction,
		threshold: threshold,
	}
}

// OnFill은 진입 체결을 반영합니다. 첫 체결에서 OPENING 상태의 포지션을
// 생성하고, 이후 체결마다 수량과 가중 평균 진입가를 갱신합니다.
// 부분 체결이 서로 다른 가격에 일어나도 진입가는 전체 체결의 VWAP입니다.
func (m *Manager) OnFill(leverage int, fills ...domain.Fill) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(fills) == 0 {
		return nil, NewPositionError(m.symbol, "체결 반영", ErrEmptyFills)
	}
	if m.position != nil && m.position.Status != domain.PositionOpening {
		return nil, NewPositionError(m.symbol, "체결 반영", ErrPositionExists)
	}

	if m.position == nil {
		m.position = &domain.Position{
			Symbol:   m.symbol,
			Side:     m.direction.PositionSide(),
			Leverage: leverage,
			Status:   domain.PositionOpening,
			OpenedAt: fills[0].Time,
		}
		m.fills = nil
	}

	m.fills = append(m.fills, fills...)
	m.position.Quantity, m.position.EntryPrice = vwap(m.fills)

	snapshot := *m.position
	return &snapshot, nil
}

// ConfirmOpen은 진입 주문이 모두 종결된 뒤 포지션을 OPEN으로 승격합니다
func (m *Manager) ConfirmOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position == nil {
		return NewPositionError(m.symbol, "진입 확정", ErrPositionNotFound)
	}
	if m.position.Status != domain.PositionOpening {
		return NewPositionError(m.symbol, "진입 확정", ErrPositionNotOpen)
	}
	m.position.Status = domain.PositionOpen
	return nil
}

// Adopt는 이미 거래소에 존재하는 포지션을 인수하여 관리합니다.
// 재시작 직후 중복 진입 대신 기존 포지션을 이어서 추적할 때 사용합니다.
func (m *Manager) Adopt(pos domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position != nil && m.position.IsActive() {
		return NewPositionError(m.symbol, "포지션 인수", ErrPositionExists)
	}
	pos.Status = domain.PositionOpen
	m.position = &pos
	m.fills = []domain.Fill{{Price: pos.EntryPrice, Quantity: pos.Quantity, Time: pos.OpenedAt}}
	return nil
}

// CheckExit은 현재 가격에서 청산이 필요한지 판단합니다.
// 가격이 임계가의 청산 방향에 있으면 (정확히 임계가에 닿은 경우 포함)
// 시장가 청산 전용 주문 결정을 반환합니다. 엄격한 역방향 돌파만 기다리지
// 않으므로 시작부터 가격이 청산 영역에 있어도 안전망으로 동작합니다.
// OPEN 상태가 아닌 포지션에는 어떤 결정도 내리지 않아 이중 청산을 막습니다.
func (m *Manager) CheckExit(sample domain.PriceSample) *ExitDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position == nil || m.position.Status != domain.PositionOpen {
		return nil
	}
	if !sample.IsValid() {
		return nil
	}
	if !m.exitReached(sample.LastPrice) {
		return nil
	}

	m.position.Status = domain.PositionClosing
	return &ExitDecision{
		Reason: "임계가 복귀",
		Request: domain.OrderRequest{
			Symbol:     m.symbol,
			Side:       m.direction.ExitSide(),
			Type:       domain.Market,
			Quantity:   m.position.Quantity,
			ReduceOnly: true,
		},
	}
}

// exitReached는 가격이 임계가의 청산 방향에 도달했는지 확인합니다
func (m *Manager) exitReached(price float64) bool {
	if m.direction == domain.Above {
		return price <= m.threshold
	}
	return price >= m.threshold
}

// OnCloseFailed는 청산 주문 제출 실패를 반영합니다.
// 포지션을 OPEN으로 되돌려 다음 사이클에서 청산을 재시도할 수 있게 합니다.
func (m *Manager) OnCloseFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position != nil && m.position.Status == domain.PositionClosing {
		m.position.Status = domain.PositionOpen
	}
}

// OnCloseConfirmed는 청산 체결 확인을 반영하여 포지션을 CLOSED로 전이하고
// 실현 손익을 반환합니다. 이미 종결된 포지션에 다시 호출하면 에러입니다.
func (m *Manager) OnCloseConfirmed(exitPrice float64, closedAt time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position == nil {
		return 0, NewPositionError(m.symbol, "청산 확정", ErrPositionNotFound)
	}
	if m.position.Status != domain.PositionClosing {
		return 0, NewPositionError(m.symbol, "청산 확정", ErrNotClosing)
	}

	pnl := m.realizedPnL(exitPrice)
	m.position.Status = domain.PositionClosed
	return pnl, nil
}

// realizedPnL은 청산가 기준 실현 손익을 계산합니다
func (m *Manager) realizedPnL(exitPrice float64) float64 {
	diff := exitPrice - m.position.EntryPrice
	if m.position.Side == domain.ShortPosition {
		diff = -diff
	}
	return diff * m.position.Quantity
}

// Position은 현재 포지션의 스냅샷을 반환합니다 (없으면 nil)
func (m *Manager) Position() *domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position == nil {
		return nil
	}
	snapshot := *m.position
	return &snapshot
}

// HasActive는 아직 종결되지 않은 포지션이 있는지 반환합니다
func (m *Manager) HasActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position != nil && m.position.IsActive()
}

// Clear는 종결된 포지션을 비워 새 사이클을 준비합니다.
// 활성 포지션이 남아 있으면 아무것도 하지 않습니다.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position != nil && !m.position.IsActive() {
		m.position = nil
		m.fills = nil
	}
}

// vwap은 체결 목록의 총 수량과 가중 평균 가격을 계산합니다
func vwap(fills []domain.Fill) (quantity, avgPrice float64) {
	var notional float64
	for _, f := range fills {
		quantity += f.Quantity
		notional += f.Price * f.Quantity
	}
	if quantity > 0 {
		avgPrice = notional / quantity
	}
	return quantity, avgPrice
}
