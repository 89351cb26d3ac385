package discord

import (
	"fmt"
	"time"

	"github.com/assist-by/crossline/internal/notification"
)

// SendCrossing은 임계가 돌파 알림을 전송합니다
func (c *Client) SendCrossing(info notification.CrossingInfo) error {
	emoji, title, color := "🚀", "상향 돌파", notification.ColorSuccess
	if info.Direction == "BELOW" {
		emoji, title, color = "🔻", "하향 돌파", notification.ColorError
	}

	embed := newEmbed(color, info.Time).
		SetTitle(fmt.Sprintf("%s %s: %s", emoji, title, info.Symbol)).
		AddField("임계가", fmt.Sprintf("$%.4f", info.Threshold), true).
		AddField("돌파 가격", fmt.Sprintf("$%.4f", info.TriggerPrice), true).
		AddField("직전 가격", fmt.Sprintf("$%.4f", info.PreviousPrice), true)

	return c.sendToWebhook(c.tradeWebhook, embed.message())
}

// SendError는 에러 알림을 전송합니다
func (c *Client) SendError(err error) error {
	embed := newEmbed(notification.ColorError, time.Now()).
		SetTitle("에러 발생").
		SetDescription(fmt.Sprintf("```%v```", err))

	return c.sendToWebhook(c.errorWebhook, embed.message())
}

// SendInfo는 일반 정보 알림을 전송합니다
func (c *Client) SendInfo(message string) error {
	embed := newEmbed(notification.ColorInfo, time.Now()).
		SetDescription(message)

	return c.sendToWebhook(c.infoWebhook, embed.message())
}

// SendTradeInfo는 거래 실행 정보를 전송합니다
func (c *Client) SendTradeInfo(info notification.TradeInfo) error {
	embed := newEmbed(notification.GetColorForPosition(info.PositionType), time.Now()).
		SetTitle(fmt.Sprintf("%s: %s", info.Action, info.Symbol)).
		AddField("포지션", info.PositionType, true).
		AddField("레버리지", fmt.Sprintf("%dx", info.Leverage), true).
		AddField("수량", fmt.Sprintf("%.8f", info.Quantity), true).
		AddField("가격", fmt.Sprintf("$%.4f", info.Price), true).
		AddField("명목 가치", fmt.Sprintf("$%.2f", info.PositionValue), true)

	if info.RealizedPnL != nil {
		embed.AddField("실현 손익", fmt.Sprintf("$%.4f", *info.RealizedPnL), true)
	}

	return c.sendToWebhook(c.tradeWebhook, embed.message())
}
