package executor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/exchange"
)

// Error 타입들은 주문 실행 중 발생할 수 있는 다양한 에러를 정의합니다
var (
	ErrRetryExhausted = fmt.Errorf("최대 재시도 횟수를 초과했습니다")
	ErrOrderRejected  = fmt.Errorf("주문이 거부되었습니다")
	ErrEntryNotFilled = fmt.Errorf("진입 주문이 체결되지 않았습니다")
)

// TransientError는 재시도 가능한 일시적 실행 에러입니다 (네트워크 단절, 레이트 리밋 등)
type TransientError struct {
	Op  string
	Err error
}

// Error는 error 인터페이스를 구현합니다
func (e *TransientError) Error() string {
	return fmt.Sprintf("일시적 실행 에러 [작업: %s]: %v", e.Op, e.Err)
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *TransientError) Unwrap() error {
	return e.Err
}

// RejectedError는 재시도해도 성공할 수 없는 종결 에러입니다
// (증거금 부족, 잘못된 수량, 존재하지 않는 심볼 등)
type RejectedError struct {
	Op   string
	Code int
	Err  error
}

// Error는 error 인터페이스를 구현합니다
func (e *RejectedError) Error() string {
	return fmt.Sprintf("주문 거부 [작업: %s, 코드: %d]: %v", e.Op, e.Code, e.Err)
}

// Unwrap은 내부 에러를 반환합니다
func (e *RejectedError) Unwrap() error {
	return e.Err
}

// MarginModeError는 격리 마진/레버리지 설정 실패를 나타냅니다.
// 잘못된 마진 모드로 주문하면 의도하지 않은 리스크를 감수하게 되므로
// 이 에러는 세션을 종료시켜야 합니다.
type MarginModeError struct {
	Symbol string
	Err    error
}

// Error는 error 인터페이스를 구현합니다
func (e *MarginModeError) Error() string {
	return fmt.Sprintf("마진 모드 설정 실패 [%s]: %v", e.Symbol, e.Err)
}

// Unwrap은 내부 에러를 반환합니다
func (e *MarginModeError) Unwrap() error {
	return e.Err
}

// IsRetryableError는 재시도 가능한 오류인지 확인합니다
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return false
	}

	// 컨텍스트 취소/타임아웃: 호출 측 타임아웃은 재시도 대상,
	// 취소는 종료 신호이므로 재시도하지 않습니다
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// 네트워크 타임아웃
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// 거래소 API 에러: 레이트 리밋과 서버 측 오류만 재시도
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == domain.ErrCodeRateLimit {
			return true
		}
		if apiErr.HTTPStatus == 429 || apiErr.HTTPStatus >= 500 {
			return true
		}
		return false
	}

	// 나머지(연결 거부 등 전송 계층 오류)는 일시적인 것으로 간주
	return true
}

// classify는 원시 에러를 재시도 가능 여부에 따라 실행 에러 타입으로 감쌉니다
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsRetryableError(err) {
		return &TransientError{Op: op, Err: err}
	}

	code := 0
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	}
	return &RejectedError{Op: op, Code: code, Err: err}
}
