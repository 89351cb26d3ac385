package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/assist-by/crossline/internal/domain"
)

type Config struct {
	// 바이낸스 API 설정
	Binance struct {
		APIKey        string `envconfig:"BINANCE_API_KEY"`
		SecretKey     string `envconfig:"BINANCE_SECRET_KEY"`
		TestAPIKey    string `envconfig:"BINANCE_TEST_API_KEY"`
		TestSecretKey string `envconfig:"BINANCE_TEST_SECRET_KEY"`
		UseTestnet    bool   `envconfig:"USE_TESTNET" default:"false"`
	}

	// 디스코드 웹훅 설정 (비워두면 알림 생략)
	Discord struct {
		TradeWebhook string `envconfig:"DISCORD_TRADE_WEBHOOK"`
		ErrorWebhook string `envconfig:"DISCORD_ERROR_WEBHOOK"`
		InfoWebhook  string `envconfig:"DISCORD_INFO_WEBHOOK"`
	}

	// 거래 설정
	Trading struct {
		Symbol         string           `envconfig:"SYMBOL" default:"BTCUSDT"`
		Direction      domain.Direction `envconfig:"DIRECTION" default:"ABOVE"`
		ThresholdPrice float64          `envconfig:"THRESHOLD_PRICE" required:"true"`
		PositionValue  float64          `envconfig:"POSITION_VALUE" default:"10.0"`
		Leverage       int              `envconfig:"LEVERAGE" default:"1"`
	}

	// 주문 가격 최적화 및 재시도 설정
	Optimizer struct {
		MaxAttempts      int           `envconfig:"MAX_ATTEMPTS" default:"3"`
		AttemptTimeout   time.Duration `envconfig:"ATTEMPT_TIMEOUT" default:"5s"`
		BackoffBase      time.Duration `envconfig:"BACKOFF_BASE" default:"1s"`
		PriceOffsetTicks int           `envconfig:"PRICE_OFFSET_TICKS" default:"1"`
	}

	// 애플리케이션 설정
	App struct {
		PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
		UseStream      bool          `envconfig:"USE_STREAM" default:"false"`
		StatePath      string        `envconfig:"STATE_DB_PATH" default:"crossline.db"`
		ReportInterval time.Duration `envconfig:"REPORT_INTERVAL" default:"15m"`
		DryRun         bool          `envconfig:"DRY_RUN" default:"false"`
	}
}

// ValidateConfig는 설정이 유효한지 확인합니다.
func ValidateConfig(cfg *Config) error {
	if !cfg.Trading.Direction.IsValid() {
		return fmt.Errorf("DIRECTION은 ABOVE 또는 BELOW여야 합니다: %s", cfg.Trading.Direction)
	}

	if cfg.Trading.ThresholdPrice <= 0 {
		return fmt.Errorf("THRESHOLD_PRICE는 0보다 커야 합니다")
	}

	if cfg.Trading.PositionValue <= 0 {
		return fmt.Errorf("POSITION_VALUE는 0보다 커야 합니다")
	}

	if cfg.Trading.Leverage < 1 || cfg.Trading.Leverage > 100 {
		return fmt.Errorf("레버리지는 1 이상 100 이하이어야 합니다")
	}

	if cfg.Optimizer.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS는 1 이상이어야 합니다")
	}

	if cfg.Optimizer.AttemptTimeout <= 0 || cfg.Optimizer.BackoffBase <= 0 {
		return fmt.Errorf("ATTEMPT_TIMEOUT과 BACKOFF_BASE는 0보다 커야 합니다")
	}

	if cfg.App.PollInterval < 500*time.Millisecond {
		return fmt.Errorf("POLL_INTERVAL은 500ms 이상이어야 합니다")
	}

	if !cfg.App.DryRun {
		apiKey, secretKey := cfg.Binance.APIKey, cfg.Binance.SecretKey
		if cfg.Binance.UseTestnet {
			apiKey, secretKey = cfg.Binance.TestAPIKey, cfg.Binance.TestSecretKey
		}
		if apiKey == "" || secretKey == "" {
			return fmt.Errorf("바이낸스 API 키가 설정되지 않았습니다 (DRY_RUN=true로 실행하거나 키를 설정하세요)")
		}
	}

	return nil
}

// LoadConfig는 환경변수에서 설정을 로드합니다.
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (없으면 환경변수만 사용)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf(".env 파일 로드 실패: %w", err)
	}

	var cfg Config
	// 환경변수를 구조체로 파싱
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	// 설정값 검증
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}
