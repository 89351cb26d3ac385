// internal/exchange/errors.go
package exchange

import (
	"errors"
	"fmt"
)

// APIError는 거래소 API가 반환한 에러 응답을 표현합니다.
// HTTP 상태와 거래소 자체 에러 코드를 함께 보존하여
// 호출 측에서 재시도 가능 여부를 판단할 수 있게 합니다.
type APIError struct {
	Code       int    // 거래소 에러 코드 (예: -4046)
	Message    string // 거래소 에러 메시지
	HTTPStatus int    // HTTP 상태 코드
}

// Error는 error 인터페이스를 구현합니다
func (e *APIError) Error() string {
	return fmt.Sprintf("API 에러(코드: %d, HTTP: %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// IsAPIErrorCode는 에러가 특정 거래소 에러 코드인지 확인합니다
func IsAPIErrorCode(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
