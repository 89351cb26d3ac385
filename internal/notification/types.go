package notification

import "time"

const (
	ColorSuccess = 0x00FF00 // 녹색
	ColorError   = 0xFF0000 // 빨간색
	ColorInfo    = 0x0000FF // 파란색
	ColorWarning = 0xFFA500 // 주황색
)

// Notifier는 알림 전송 인터페이스를 정의합니다
type Notifier interface {
	// SendCrossing은 임계가 돌파 알림을 전송합니다
	SendCrossing(info CrossingInfo) error

	// SendError는 에러 알림을 전송합니다
	SendError(err error) error

	// SendInfo는 일반 정보 알림을 전송합니다
	SendInfo(message string) error

	// SendTradeInfo는 거래 실행 정보를 전송합니다
	SendTradeInfo(info TradeInfo) error
}

// CrossingInfo는 임계가 돌파 알림 정보를 정의합니다
type CrossingInfo struct {
	Symbol        string    // 심볼 (예: BTCUSDT)
	Direction     string    // "ABOVE" or "BELOW"
	Threshold     float64   // 설정된 임계가
	TriggerPrice  float64   // 돌파 시점 가격
	PreviousPrice float64   // 직전 관측 가격
	Time          time.Time // 돌파 시각
}

// TradeInfo는 거래 실행 정보를 정의합니다
type TradeInfo struct {
	Symbol        string   // 심볼 (예: BTCUSDT)
	Action        string   // "진입" or "청산"
	PositionType  string   // "LONG" or "SHORT"
	Quantity      float64  // 체결 수량 (코인)
	Price         float64  // 체결 가중 평균가
	PositionValue float64  // 포지션 명목 가치 (USDT)
	Leverage      int      // 사용 레버리지
	RealizedPnL   *float64 // 실현 손익 (청산 시에만 설정)
}

// GetColorForPosition은 포지션 타입에 따른 색상을 반환합니다
func GetColorForPosition(positionType string) int {
	switch positionType {
	case "LONG":
		return ColorSuccess
	case "SHORT":
		return ColorError
	default:
		return ColorInfo
	}
}
