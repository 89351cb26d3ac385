package feed

import (
	"context"
	"time"

	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/exchange"
)

const defaultOutageBackoff = 5 * time.Second

// PollFeed는 거래소 REST API를 주기적으로 조회하는 피드입니다.
// 조회가 실패하면 해당 사이클은 에러로 반환하고, 다음 조회를
// 백오프 간격만큼 늦춰 장애 중 요청 폭주를 막습니다.
type PollFeed struct {
	exchange exchange.Exchange
	symbol   string
	interval time.Duration
	backoff  time.Duration

	nextAt time.Time
	closed bool
}

// NewPollFeed는 새로운 폴링 피드를 생성합니다
func NewPollFeed(ex exchange.Exchange, symbol string, interval time.Duration) *PollFeed {
	return &PollFeed{
		exchange: ex,
		symbol:   symbol,
		interval: interval,
		backoff:  defaultOutageBackoff,
	}
}

// Next는 다음 폴링 시각까지 대기한 뒤 가격 샘플을 조회합니다
func (f *PollFeed) Next(ctx context.Context) (domain.PriceSample, error) {
	if f.closed {
		return domain.PriceSample{}, ErrFeedClosed
	}

	if wait := time.Until(f.nextAt); wait > 0 {
		select {
		case <-ctx.Done():
			return domain.PriceSample{}, ctx.Err()
		case <-time.After(wait):
		}
	}

	sample, err := f.exchange.GetPriceSample(ctx, f.symbol)
	if err != nil {
		f.nextAt = time.Now().Add(f.backoff)
		return domain.PriceSample{}, err
	}

	f.nextAt = time.Now().Add(f.interval)
	return sample, nil
}

// Close는 피드를 종료합니다
func (f *PollFeed) Close() error {
	f.closed = true
	return nil
}
