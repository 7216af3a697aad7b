// Package email renders the market summary and delivers it through Resend.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"xrp_etf_backend/config"
)

//go:embed templates/*
var templateFS embed.FS

// Row is one ETF line in the summary
type Row struct {
	Symbol      string
	Description string
	Price       float64
	Shares      int64
	Dollars     int64
}

// Group is one ETF category
type Group struct {
	Name string
	Rows []Row
}

// SentimentLine is the sentiment headline
type SentimentLine struct {
	Score int
	Label string
}

// HoldingsLine is the exchange holdings headline, amounts already formatted
type HoldingsLine struct {
	Total  string
	Change string
}

// Summary is everything the summary email shows
type Summary struct {
	Subject      string
	GeneratedAt  time.Time
	XRPPrice     float64
	XRPChange24h float64
	TotalDollars int64
	Groups       []Group
	Sentiment    *SentimentLine
	Holdings     *HoldingsLine
	Insight      string
}

// Message is a rendered email
type Message struct {
	Subject string
	HTML    string
	Text    string
	Tags    map[string]string
}

var funcs = map[string]any{
	"comma": humanize.Comma,
	"usd": func(v float64) string {
		return humanize.FormatFloat("#,###.##", v)
	},
	"pct": func(v float64) string {
		return fmt.Sprintf("%+.2f%%", v)
	},
}

var (
	htmlTemplate = htmltemplate.Must(htmltemplate.New("summary.html").Funcs(funcs).ParseFS(templateFS, "templates/summary.html"))
	textTemplate = texttemplate.Must(texttemplate.New("summary.txt").Funcs(funcs).ParseFS(templateFS, "templates/summary.txt"))
)

// Render builds the html and text bodies for s
func Render(s Summary) (Message, error) {
	if s.Subject == "" {
		s.Subject = "XRP ETF Summary " + s.GeneratedAt.UTC().Format("2006-01-02 15:04") + " UTC"
	}

	var html, text bytes.Buffer
	if err := htmlTemplate.Execute(&html, s); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := textTemplate.Execute(&text, s); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}

	return Message{
		Subject: s.Subject,
		HTML:    html.String(),
		Text:    text.String(),
		Tags:    map[string]string{"category": "summary"},
	}, nil
}

// Sender delivers messages to the configured recipients
type Sender struct {
	client *resend.Client
	from   string
	to     []string
	log    zerolog.Logger
}

// NewSender creates a sender. Without a key or recipients it is disabled.
func NewSender(apiKey, from string, to []string, log zerolog.Logger) *Sender {
	s := &Sender{
		from: from,
		to:   to,
		log:  log.With().Str("component", "email").Logger(),
	}
	if apiKey != "" {
		s.client = resend.NewClient(apiKey)
	}
	return s
}

// WithBaseURL points the sender at another API host, for tests
func (s *Sender) WithBaseURL(u *url.URL) *Sender {
	if s.client != nil {
		s.client.BaseURL = u
	}
	return s
}

// Enabled reports whether the sender can deliver
func (s *Sender) Enabled() bool {
	return s != nil && s.client != nil && len(s.to) > 0
}

// Send delivers msg and returns the provider message id
func (s *Sender) Send(ctx context.Context, msg Message) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("email: %w", config.ErrNotConfigured)
	}

	tags := make([]resend.Tag, 0, len(msg.Tags))
	for name, value := range msg.Tags {
		tags = append(tags, resend.Tag{Name: name, Value: value})
	}

	refID := uuid.NewString()
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      s.to,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Tags:    tags,
		Headers: map[string]string{
			// stops clients from threading separate summaries together
			"X-Entity-Ref-ID": refID,
		},
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.log.Error().Err(err).Str("subject", msg.Subject).Int("recipients", len(s.to)).Msg("Failed to send email")
		return "", fmt.Errorf("send email: %w", err)
	}

	s.log.Info().
		Str("email_id", sent.Id).
		Str("ref_id", refID).
		Str("subject", msg.Subject).
		Int("recipients", len(s.to)).
		Msg("Email sent")
	return sent.Id, nil
}
