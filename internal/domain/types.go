package domain

// Direction은 임계가 돌파를 감시할 방향을 정의합니다
type Direction string

const (
	Above Direction = "ABOVE" // 아래에서 위로 돌파 시 진입 (롱 변형)
	Below Direction = "BELOW" // 위에서 아래로 돌파 시 진입 (숏 변형)
)

// IsValid는 방향 값이 유효한지 확인합니다
func (d Direction) IsValid() bool {
	return d == Above || d == Below
}

// EntrySide는 해당 방향의 진입 주문 사이드를 반환합니다
func (d Direction) EntrySide() OrderSide {
	if d == Above {
		return Buy
	}
	return Sell
}

// ExitSide는 해당 방향의 청산 주문 사이드를 반환합니다
func (d Direction) ExitSide() OrderSide {
	if d == Above {
		return Sell
	}
	return Buy
}

// PositionSide는 해당 방향으로 진입했을 때의 포지션 사이드를 반환합니다
func (d Direction) PositionSide() PositionSide {
	if d == Above {
		return LongPosition
	}
	return ShortPosition
}

// OrderSide는 주문 방향을 정의합니다
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite는 반대 주문 사이드를 반환합니다
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// PositionSide는 포지션 방향을 정의합니다
type PositionSide string

const (
	LongPosition  PositionSide = "LONG"
	ShortPosition PositionSide = "SHORT"
)

// OrderType은 주문 유형을 정의합니다
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// OrderStatus는 주문의 상태를 정의합니다
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"   // 제출 후 ack 대기
	OrderOpen      OrderStatus = "OPEN"      // 체결 대기 (부분 체결 포함)
	OrderFilled    OrderStatus = "FILLED"    // 전량 체결
	OrderCancelled OrderStatus = "CANCELLED" // 취소 완료
	OrderRejected  OrderStatus = "REJECTED"  // 거래소 거부
)

// IsTerminal은 주문이 종료 상태인지 확인합니다
func (s OrderStatus) IsTerminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

// PositionStatus는 포지션 생명주기 상태를 정의합니다
type PositionStatus string

const (
	PositionOpening PositionStatus = "OPENING"
	PositionOpen    PositionStatus = "OPEN"
	PositionClosing PositionStatus = "CLOSING"
	PositionClosed  PositionStatus = "CLOSED"
)

// MarginMode는 마진 모드를 정의합니다
type MarginMode string

const (
	Isolated MarginMode = "ISOLATED"
	Crossed  MarginMode = "CROSSED"
)

// TimeInForce는 주문 유효 기간 정책을 정의합니다
const (
	GTC = "GTC" // 취소 시까지 유효
	IOC = "IOC" // 즉시 체결 가능분만 체결
)

// ErrorCode는 거래소 API 에러 코드를 정의합니다
const (
	ErrCodeMarginModeNoChange = -4046 // 마진 모드 변경 불필요 에러
	ErrCodeRateLimit          = -1003 // 요청 한도 초과
)
