package discord

import (
	"time"
)

// WebhookMessage는 Discord 웹훅 페이로드입니다.
// 임베드 스키마 중 이 봇이 사용하는 부분만 정의합니다.
type WebhookMessage struct {
	Embeds []Embed `json:"embeds,omitempty"`
}

// Embed는 Discord 메시지 임베드를 정의합니다
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField는 임베드 필드를 정의합니다
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// EmbedFooter는 임베드 푸터를 정의합니다
type EmbedFooter struct {
	Text string `json:"text"`
}

const footerText = "Crossline Trading Bot 🤖"

// newEmbed는 공통 푸터와 타임스탬프가 채워진 임베드를 생성합니다
func newEmbed(color int, at time.Time) *Embed {
	return &Embed{
		Color:     color,
		Footer:    &EmbedFooter{Text: footerText},
		Timestamp: at.Format(time.RFC3339),
	}
}

// SetTitle은 임베드 제목을 설정합니다
func (e *Embed) SetTitle(title string) *Embed {
	e.Title = title
	return e
}

// SetDescription은 임베드 설명을 설정합니다
func (e *Embed) SetDescription(desc string) *Embed {
	e.Description = desc
	return e
}

// AddField는 임베드에 필드를 추가합니다
func (e *Embed) AddField(name, value string, inline bool) *Embed {
	e.Fields = append(e.Fields, EmbedField{
		Name:   name,
		Value:  value,
		Inline: inline,
	})
	return e
}

// message는 임베드 하나짜리 웹훅 메시지를 만듭니다
func (e *Embed) message() WebhookMessage {
	return WebhookMessage{Embeds: []Embed{*e}}
}
