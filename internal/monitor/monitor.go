package monitor

import (
	"time"

	"github.com/assist-by/crossline/internal/domain"
)

// CrossingEvent는 가격이 임계가를 돌파했을 때 생성되는 이벤트입니다.
// 세션당 최대 한 번만 생성되며 Reset 전까지 다시 발생하지 않습니다.
type CrossingEvent struct {
	Time          time.Time        // 돌파 관측 시각
	TriggerPrice  float64          // 돌파 시점의 가격
	PreviousPrice float64          // 직전 관측 가격
	Direction     domain.Direction // 돌파 방향
}

// Monitor는 임계가 돌파 감지기를 구현합니다.
// 엄격한 돌파(직전 가격이 반대편에 있다가 넘어오는 전이)만 인정하므로
// 가격이 임계가 위/아래에서 진동해도 재발화하지 않습니다.
type Monitor struct {
	direction domain.Direction
	threshold float64

	lastPrice float64
	seeded    bool
	triggered bool
}

// NewMonitor는 새로운 임계가 감지기를 생성합니다
func NewMonitor(direction domain.Direction, threshold float64) *Monitor {
	return &Monitor{
		direction: direction,
		threshold: threshold,
	}
}

// Observe는 가격 샘플 하나를 관측하고, 돌파가 발생했으면 이벤트를 반환합니다.
// 첫 샘플은 비교 대상이 없으므로 상태만 초기화하고 이벤트를 만들지 않습니다.
func (m *Monitor) Observe(sample domain.PriceSample) *CrossingEvent {
	if !sample.IsValid() {
		// 피드 이상으로 비정상 샘플이 들어오면 상태를 오염시키지 않습니다
		return nil
	}

	price := sample.LastPrice

	if !m.seeded {
		m.lastPrice = price
		m.seeded = true
		return nil
	}

	prev := m.lastPrice
	m.lastPrice = price

	if m.triggered {
		return nil
	}

	if !m.crossed(prev, price) {
		return nil
	}

	m.triggered = true
	return &CrossingEvent{
		Time:          sample.Time,
		TriggerPrice:  price,
		PreviousPrice: prev,
		Direction:     m.direction,
	}
}

// crossed는 직전 가격과 현재 가격 사이에 엄격한 돌파가 있었는지 확인합니다
func (m *Monitor) crossed(prev, price float64) bool {
	if m.direction == domain.Above {
		return prev < m.threshold && price >= m.threshold
	}
	return prev > m.threshold && price <= m.threshold
}

// Triggered는 현재 세션에서 이미 돌파가 발생했는지 반환합니다
func (m *Monitor) Triggered() bool {
	return m.triggered
}

// Threshold는 설정된 임계가를 반환합니다
func (m *Monitor) Threshold() float64 {
	return m.threshold
}

// Reset은 새 사이클을 위해 돌파 상태를 초기화합니다.
// 직전 가격은 유지하므로 리셋 직후의 샘플부터 바로 돌파를 감지할 수 있습니다.
func (m *Monitor) Reset() {
	m.triggered = false
}
