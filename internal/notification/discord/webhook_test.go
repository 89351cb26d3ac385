package discord

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/crossline/internal/notification"
)

// captureServer는 수신한 웹훅 페이로드를 기록하는 테스트 서버를 만듭니다
func captureServer(t *testing.T, got *WebhookMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, got))
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestClient_SendCrossing(t *testing.T) {
	var got WebhookMessage
	server := captureServer(t, &got)
	defer server.Close()

	c := NewClient(server.URL, "", "")
	err := c.SendCrossing(notification.CrossingInfo{
		Symbol:        "BTCUSDT",
		Direction:     "ABOVE",
		Threshold:     50000,
		TriggerPrice:  50010.5,
		PreviousPrice: 49990.0,
		Time:          time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Contains(t, embed.Title, "상향 돌파")
	assert.Contains(t, embed.Title, "BTCUSDT")
	assert.Equal(t, notification.ColorSuccess, embed.Color)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "임계가", embed.Fields[0].Name)
	assert.Equal(t, "$50000.0000", embed.Fields[0].Value)
}

func TestClient_SendTradeInfo_WithPnL(t *testing.T) {
	var got WebhookMessage
	server := captureServer(t, &got)
	defer server.Close()

	pnl := -1.2345
	c := NewClient(server.URL, "", "")
	err := c.SendTradeInfo(notification.TradeInfo{
		Symbol:        "BTCUSDT",
		Action:        "청산",
		PositionType:  "LONG",
		Quantity:      0.002,
		Price:         50000,
		PositionValue: 100,
		Leverage:      5,
		RealizedPnL:   &pnl,
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	fields := got.Embeds[0].Fields
	require.Len(t, fields, 6)
	assert.Equal(t, "실현 손익", fields[5].Name)
	assert.Equal(t, "$-1.2345", fields[5].Value)
}

func TestClient_SendInfo(t *testing.T) {
	var got WebhookMessage
	server := captureServer(t, &got)
	defer server.Close()

	c := NewClient("", "", server.URL)
	require.NoError(t, c.SendInfo("안내 메시지"))

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "안내 메시지", got.Embeds[0].Description)
	// 정보 알림 색상은 notification 패키지의 단일 정의를 따름
	assert.Equal(t, notification.ColorInfo, got.Embeds[0].Color)
}

func TestClient_EmptyWebhookSkipped(t *testing.T) {
	// 웹훅이 비어 있으면 전송하지 않고 성공 처리
	c := NewClient("", "", "")
	assert.NoError(t, c.SendInfo("무시될 메시지"))
	assert.NoError(t, c.SendCrossing(notification.CrossingInfo{Symbol: "BTCUSDT"}))
}

func TestClient_WebhookErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient("", "", server.URL)
	assert.Error(t, c.SendInfo("거부될 메시지"))
}
