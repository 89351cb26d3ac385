// Package feed는 가격 샘플의 무한 시퀀스를 제공합니다.
// 폴링 기반과 웹소켓 스트리밍 기반 구현이 있으며, 감시 루프는
// 전달 방식과 무관하게 Next만 호출합니다.
package feed

import (
	"context"
	"fmt"

	"github.com/assist-by/crossline/internal/domain"
)

// ErrFeedClosed는 피드가 종료된 뒤 Next를 호출하면 반환됩니다
var ErrFeedClosed = fmt.Errorf("피드가 종료되었습니다")

// Feed는 가격 샘플을 순서대로 공급합니다.
// Next는 다음 샘플이 준비될 때까지 블록하며, 일시적인 조회 실패는
// 에러로 반환하되 내부적으로 백오프 후 계속 동작합니다.
type Feed interface {
	Next(ctx context.Context) (domain.PriceSample, error)
	Close() error
}
