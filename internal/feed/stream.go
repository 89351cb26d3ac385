package feed

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/assist-by/crossline/internal/domain"
)

const (
	mainnetStreamURL = "wss://fstream.binance.com/ws"
	testnetStreamURL = "wss://stream.binancefuture.com/ws"

	streamReadTimeout   = 60 * time.Second
	streamWriteTimeout  = 10 * time.Second
	streamPingInterval  = 20 * time.Second
	streamRedialBackoff = 5 * time.Second
)

// StreamFeed는 바이낸스 선물 웹소켓 스트림에서 가격 샘플을 수신합니다.
// 심볼의 aggTrade와 bookTicker 스트림을 함께 구독하여 최근 체결가에
// 최우선 호가를 병합한 샘플을 만듭니다. 연결이 끊기면 백오프 후
// 재접속하고 다시 구독합니다.
type StreamFeed struct {
	symbol string
	url    string

	mu   sync.Mutex
	conn *websocket.Conn

	samples   chan domain.PriceSample
	done      chan struct{}
	closeOnce sync.Once

	// 병합 상태 (수신 고루틴에서만 접근)
	lastPrice float64
	bestBid   float64
	bestAsk   float64
}

// NewStreamFeed는 새로운 스트리밍 피드를 생성합니다
func NewStreamFeed(symbol string, useTestnet bool) *StreamFeed {
	url := mainnetStreamURL
	if useTestnet {
		url = testnetStreamURL
	}
	return &StreamFeed{
		symbol:  symbol,
		url:     url,
		samples: make(chan domain.PriceSample, 1024),
		done:    make(chan struct{}),
	}
}

// Connect는 웹소켓에 접속하고 수신 고루틴을 시작합니다
func (f *StreamFeed) Connect(ctx context.Context) error {
	if err := f.dial(ctx); err != nil {
		return err
	}
	if err := f.subscribe(); err != nil {
		f.closeConn()
		return err
	}

	go f.run(ctx)
	return nil
}

// Next는 다음 가격 샘플을 반환합니다
func (f *StreamFeed) Next(ctx context.Context) (domain.PriceSample, error) {
	select {
	case <-ctx.Done():
		return domain.PriceSample{}, ctx.Err()
	case <-f.done:
		return domain.PriceSample{}, ErrFeedClosed
	case sample := <-f.samples:
		return sample, nil
	}
}

// Close는 피드를 종료합니다
func (f *StreamFeed) Close() error {
	f.closeOnce.Do(func() {
		close(f.done)
		f.closeConn()
	})
	return nil
}

func (f *StreamFeed) dial(ctx context.Context) error {
	log.Printf("[%s 스트림] %s 접속 중...", f.symbol, f.url)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}

	conn.SetReadLimit(1024 * 1024)
	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		return nil
	})

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	log.Printf("[%s 스트림] 접속 완료", f.symbol)
	return nil
}

func (f *StreamFeed) subscribe() error {
	symbol := strings.ToLower(f.symbol)
	payload := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": []string{symbol + "@aggTrade", symbol + "@bookTicker"},
		"id":     time.Now().Unix(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return f.write(websocket.TextMessage, data)
}

func (f *StreamFeed) write(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return ErrFeedClosed
	}
	f.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return f.conn.WriteMessage(messageType, data)
}

func (f *StreamFeed) closeConn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

// run은 연결 생애주기를 관리합니다. 수신 루프가 끊어지면
// 백오프 후 재접속과 재구독을 반복합니다.
func (f *StreamFeed) run(ctx context.Context) {
	for {
		f.readLoop(ctx)

		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(streamRedialBackoff):
		}

		if err := f.dial(ctx); err != nil {
			log.Printf("[%s 스트림] 재접속 실패: %v", f.symbol, err)
			continue
		}
		if err := f.subscribe(); err != nil {
			log.Printf("[%s 스트림] 재구독 실패: %v", f.symbol, err)
			f.closeConn()
		}
	}
}

// readLoop는 메시지를 읽어 샘플로 변환하고 채널에 전달합니다.
// 루프가 끝나면 stop 채널로 핑 고루틴도 함께 종료시킵니다.
func (f *StreamFeed) readLoop(ctx context.Context) {
	stop := make(chan struct{})
	defer close(stop)

	go f.pingLoop(ctx, stop)

	for {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
			default:
				log.Printf("[%s 스트림] 수신 오류: %v", f.symbol, err)
			}
			f.closeConn()
			return
		}
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		if sample := f.handleMessage(message); sample != nil {
			select {
			case f.samples <- *sample:
			default:
				// 소비가 늦으면 오래된 샘플부터 버림
				select {
				case <-f.samples:
				default:
				}
				f.samples <- *sample
			}
		}
	}
}

// pingLoop는 연결 유지를 위해 주기적으로 핑을 전송합니다.
// 수신 루프가 끝나면 stop이 닫혀 함께 종료됩니다.
func (f *StreamFeed) pingLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-f.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage는 수신 메시지를 해석해 병합 상태를 갱신하고,
// 체결 이벤트에서만 완성된 샘플을 반환합니다
func (f *StreamFeed) handleMessage(raw []byte) *domain.PriceSample {
	var quick struct {
		Event string `json:"e"`
	}
	if err := json.Unmarshal(raw, &quick); err != nil {
		return nil
	}

	switch quick.Event {
	case "aggTrade":
		var trade struct {
			Symbol    string `json:"s"`
			Price     string `json:"p"`
			TradeTime int64  `json:"T"`
		}
		if err := json.Unmarshal(raw, &trade); err != nil {
			return nil
		}
		price, err := strconv.ParseFloat(trade.Price, 64)
		if err != nil || price <= 0 {
			return nil
		}

		f.lastPrice = price
		return &domain.PriceSample{
			Time:      time.Unix(0, trade.TradeTime*int64(time.Millisecond)),
			LastPrice: price,
			BestBid:   f.bestBid,
			BestAsk:   f.bestAsk,
			Symbol:    trade.Symbol,
		}

	case "bookTicker":
		var book struct {
			BidPrice string `json:"b"`
			AskPrice string `json:"a"`
		}
		if err := json.Unmarshal(raw, &book); err != nil {
			return nil
		}
		if bid, err := strconv.ParseFloat(book.BidPrice, 64); err == nil {
			f.bestBid = bid
		}
		if ask, err := strconv.ParseFloat(book.AskPrice, 64); err == nil {
			f.bestAsk = ask
		}
		return nil
	}

	// 구독 확인 등 그 외 메시지는 무시
	return nil
}
