package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamFeed_HandleMessage(t *testing.T) {
	f := NewStreamFeed("BTCUSDT", false)

	t.Run("호가 이벤트는 병합 상태만 갱신", func(t *testing.T) {
		raw := []byte(`{"e":"bookTicker","u":400900217,"s":"BTCUSDT","b":"9.99","B":"31.2","a":"10.01","A":"40.6"}`)
		sample := f.handleMessage(raw)
		assert.Nil(t, sample)
		assert.Equal(t, 9.99, f.bestBid)
		assert.Equal(t, 10.01, f.bestAsk)
	})

	t.Run("체결 이벤트는 호가가 병합된 샘플 생성", func(t *testing.T) {
		raw := []byte(`{"e":"aggTrade","E":1693200000100,"s":"BTCUSDT","a":26129,"p":"10.00","q":"0.5","T":1693200000099,"m":true}`)
		sample := f.handleMessage(raw)
		require.NotNil(t, sample)
		assert.Equal(t, "BTCUSDT", sample.Symbol)
		assert.Equal(t, 10.00, sample.LastPrice)
		assert.Equal(t, 9.99, sample.BestBid)
		assert.Equal(t, 10.01, sample.BestAsk)
		assert.Equal(t, int64(1693200000099), sample.Time.UnixMilli())
		assert.True(t, sample.IsValid())
	})

	t.Run("구독 확인 응답은 무시", func(t *testing.T) {
		assert.Nil(t, f.handleMessage([]byte(`{"result":null,"id":1693200000}`)))
	})

	t.Run("비정상 가격은 무시", func(t *testing.T) {
		assert.Nil(t, f.handleMessage([]byte(`{"e":"aggTrade","s":"BTCUSDT","p":"0","T":1}`)))
		assert.Nil(t, f.handleMessage([]byte(`{"e":"aggTrade","s":"BTCUSDT","p":"abc","T":1}`)))
	})

	t.Run("깨진 메시지는 무시", func(t *testing.T) {
		assert.Nil(t, f.handleMessage([]byte(`not-json`)))
	})
}

// 수신 루프가 끝날 때마다 핑 고루틴도 따라서 종료되어야 합니다.
// 재접속을 반복해도 고루틴이 누적되지 않는지 확인합니다.
func TestStreamFeed_PingLoopStopsWithReadLoop(t *testing.T) {
	f := NewStreamFeed("BTCUSDT", false)

	stop := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		f.pingLoop(context.Background(), stop)
		close(returned)
	}()

	close(stop)
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("stop 이후에도 핑 고루틴이 종료되지 않음")
	}
}
