package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/exchange"
)

// priceSource는 GetPriceSample만 시나리오대로 동작하는 테스트용 거래소입니다
type priceSource struct {
	exchange.Exchange

	samples []domain.PriceSample
	errs    []error
	calls   int
}

func (s *priceSource) GetPriceSample(ctx context.Context, symbol string) (domain.PriceSample, error) {
	idx := s.calls
	s.calls++

	if idx < len(s.errs) && s.errs[idx] != nil {
		return domain.PriceSample{}, s.errs[idx]
	}
	if idx < len(s.samples) {
		return s.samples[idx], nil
	}
	return domain.PriceSample{Symbol: symbol, LastPrice: 1.0, Time: time.Now()}, nil
}

func TestPollFeed_Next(t *testing.T) {
	src := &priceSource{
		samples: []domain.PriceSample{
			{Symbol: "BTCUSDT", LastPrice: 10.00},
			{Symbol: "BTCUSDT", LastPrice: 10.05},
		},
	}
	f := NewPollFeed(src, "BTCUSDT", time.Millisecond)
	defer f.Close()

	first, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.00, first.LastPrice)

	second, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.05, second.LastPrice)
}

func TestPollFeed_OutageBackoff(t *testing.T) {
	outage := errors.New("connection refused")
	src := &priceSource{
		errs:    []error{nil, outage},
		samples: []domain.PriceSample{{Symbol: "BTCUSDT", LastPrice: 10.00}},
	}
	f := NewPollFeed(src, "BTCUSDT", time.Millisecond)
	f.backoff = 20 * time.Millisecond
	defer f.Close()

	_, err := f.Next(context.Background())
	require.NoError(t, err)

	// 장애 사이클: 에러가 그대로 전달됨 (샘플 없음 → 돌파 감지 보류)
	start := time.Now()
	_, err = f.Next(context.Background())
	require.ErrorIs(t, err, outage)

	// 다음 조회는 백오프만큼 늦게 나감
	_, err = f.Next(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPollFeed_Closed(t *testing.T) {
	f := NewPollFeed(&priceSource{}, "BTCUSDT", time.Millisecond)
	require.NoError(t, f.Close())

	_, err := f.Next(context.Background())
	assert.ErrorIs(t, err, ErrFeedClosed)
}

func TestPollFeed_ContextCancel(t *testing.T) {
	f := NewPollFeed(&priceSource{}, "BTCUSDT", time.Second)
	defer f.Close()

	// 첫 호출로 다음 폴링 시각을 1초 뒤로 밀어둠
	_, err := f.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = f.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
