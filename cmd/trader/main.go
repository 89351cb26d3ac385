package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/assist-by/crossline/internal/bot"
	"github.com/assist-by/crossline/internal/config"
	"github.com/assist-by/crossline/internal/domain"
	"github.com/assist-by/crossline/internal/exchange"
	"github.com/assist-by/crossline/internal/exchange/binance"
	"github.com/assist-by/crossline/internal/exchange/paper"
	"github.com/assist-by/crossline/internal/feed"
	"github.com/assist-by/crossline/internal/notification"
	"github.com/assist-by/crossline/internal/notification/discord"
	"github.com/assist-by/crossline/internal/scheduler"
	"github.com/assist-by/crossline/internal/store"
)

// paperFeed는 스트리밍 피드의 샘플을 페이퍼 거래소에도 반영합니다.
// DRY_RUN에서 대기 중인 지정가 주문이 실시간 시세로 체결되게 합니다.
type paperFeed struct {
	feed  feed.Feed
	paper *paper.Exchange
}

func (f *paperFeed) Next(ctx context.Context) (domain.PriceSample, error) {
	sample, err := f.feed.Next(ctx)
	if err != nil {
		return sample, err
	}
	f.paper.SetSample(sample)
	return sample, nil
}

func (f *paperFeed) Close() error { return f.feed.Close() }

func main() {
	// 로그 설정
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("임계가 돌파 트레이딩 봇 시작...")

	// 설정 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("설정 로드 실패: %v", err)
	}

	// 종료 시그널 처리
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// API 키 선택
	apiKey := cfg.Binance.APIKey
	secretKey := cfg.Binance.SecretKey
	if cfg.Binance.UseTestnet {
		apiKey = cfg.Binance.TestAPIKey
		secretKey = cfg.Binance.TestSecretKey
	}

	// Discord 클라이언트 생성 (웹훅이 하나도 없으면 알림 생략)
	var notifier notification.Notifier
	var discordClient *discord.Client
	if cfg.Discord.TradeWebhook != "" || cfg.Discord.ErrorWebhook != "" || cfg.Discord.InfoWebhook != "" {
		discordClient = discord.NewClient(
			cfg.Discord.TradeWebhook,
			cfg.Discord.ErrorWebhook,
			cfg.Discord.InfoWebhook,
			discord.WithTimeout(10*time.Second),
		)
		notifier = discordClient

		// 시작 알림 전송
		if err := discordClient.SendInfo(fmt.Sprintf("🚀 트레이딩 봇이 시작되었습니다. (%s, 임계가: %.4f, 방향: %s)",
			cfg.Trading.Symbol, cfg.Trading.ThresholdPrice, cfg.Trading.Direction)); err != nil {
			log.Printf("시작 알림 전송 실패: %v", err)
		}

		if cfg.Binance.UseTestnet {
			discordClient.SendInfo("⚠️ 테스트넷 모드로 실행 중입니다. 실제 자산은 사용되지 않습니다.")
		} else if !cfg.App.DryRun {
			discordClient.SendInfo("⚠️ 메인넷 모드로 실행 중입니다. 실제 자산이 사용됩니다!")
		}
	}

	// 바이낸스 클라이언트 생성
	binanceClient := binance.NewClient(
		apiKey,
		secretKey,
		binance.WithTimeout(10*time.Second),
		binance.WithTestnet(cfg.Binance.UseTestnet),
	)

	// DRY_RUN이면 실주문 대신 페이퍼 거래소로 감쌉니다.
	// 시세는 실제 거래소에서 가져오고 주문만 시뮬레이션됩니다.
	var ex exchange.Exchange = binanceClient
	var paperExchange *paper.Exchange
	if cfg.App.DryRun {
		paperExchange = paper.NewExchange(binanceClient, domain.SymbolInfo{})
		ex = paperExchange

		log.Println("DRY_RUN 모드: 주문은 시뮬레이션으로만 처리됩니다")
		if discordClient != nil {
			discordClient.SendInfo("🧪 DRY_RUN 모드로 실행 중입니다. 주문은 시뮬레이션으로만 처리됩니다.")
		}
	}

	// 포지션 상태 저장소
	st, err := store.Open(cfg.App.StatePath)
	if err != nil {
		log.Fatalf("포지션 저장소 열기 실패: %v", err)
	}
	defer st.Close()

	// 가격 피드 선택
	var fd feed.Feed
	if cfg.App.UseStream {
		stream := feed.NewStreamFeed(cfg.Trading.Symbol, cfg.Binance.UseTestnet)
		if err := stream.Connect(ctx); err != nil {
			log.Fatalf("웹소켓 연결 실패: %v", err)
		}
		fd = stream
		if paperExchange != nil {
			fd = &paperFeed{feed: stream, paper: paperExchange}
		}
	} else {
		fd = feed.NewPollFeed(ex, cfg.Trading.Symbol, cfg.App.PollInterval)
	}
	defer fd.Close()

	b := bot.New(cfg, ex, fd, notifier, st)

	// 주기적 상태 보고 (알림이 설정된 경우에만)
	if notifier != nil && cfg.App.ReportInterval > 0 {
		reporter := scheduler.NewScheduler(cfg.App.ReportInterval, bot.NewStatusTask(b))
		go func() {
			if err := reporter.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("상태 보고 스케줄러 종료: %v", err)
			}
		}()
		defer reporter.Stop()
	}

	// 봇 실행
	err = b.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Println("종료 신호를 수신했습니다")
	case err != nil:
		log.Printf("봇 실행 중 에러 발생: %v", err)
		if discordClient != nil {
			if sendErr := discordClient.SendError(err); sendErr != nil {
				log.Printf("에러 알림 전송 실패: %v", sendErr)
			}
		}
		stop()
		st.Close()
		fd.Close()
		os.Exit(1)
	}

	// 종료 알림 전송
	if discordClient != nil {
		if err := discordClient.SendInfo("👋 트레이딩 봇이 정상적으로 종료되었습니다."); err != nil {
			log.Printf("종료 알림 전송 실패: %v", err)
		}
	}

	log.Println("프로그램을 종료합니다.")
}
