// internal/exchange/exchange.go
package exchange

import (
	"context"
	"time"

	"github.com/assist-by/crossline/internal/domain"
)

// Exchange는 거래소와의 상호작용을 위한 인터페이스입니다.
type Exchange interface {
	// 시장 데이터 조회
	GetServerTime(ctx context.Context) (time.Time, error)
	GetSymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error)
	GetPriceSample(ctx context.Context, symbol string) (domain.PriceSample, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error)

	// 계정 데이터 조회
	GetPosition(ctx context.Context, symbol string) (*domain.Position, error)
	GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error)

	// 거래 기능
	PlaceOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	// 설정 기능
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginType(ctx context.Context, symbol string, mode domain.MarginMode) error

	// 시간 동기화
	SyncTime(ctx context.Context) error
}
