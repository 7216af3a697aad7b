// Package notifier assembles the market summary email and sends it on demand or on schedule.
package notifier

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"xrp_etf_backend/config"
	"xrp_etf_backend/models"
	"xrp_etf_backend/scheduler"
	"xrp_etf_backend/services/email"
	"xrp_etf_backend/services/holdings"
	"xrp_etf_backend/services/market"
)

// Status is the payload of /api/email-status
type Status struct {
	Enabled    bool       `json:"enabled"`
	Recipients int        `json:"recipients"`
	Hours      []int      `json:"hoursUtc"`
	SentCount  int        `json:"sentCount"`
	LastSent   *time.Time `json:"lastSent,omitempty"`
	LastID     string     `json:"lastId,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	Running    bool       `json:"running"`
	NextRun    *time.Time `json:"nextRun,omitempty"`
}

// Notifier sends the summary email
type Notifier struct {
	market   *market.Service
	holdings *holdings.Service
	sender   *email.Sender
	cfg      *config.Config
	task     *scheduler.Task
	schedule *scheduler.Scheduler
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	sentCount int
	lastSent  time.Time
	lastID    string
	lastErr   string
}

// New creates a notifier. holdingsSvc may be nil.
func New(marketSvc *market.Service, holdingsSvc *holdings.Service, sender *email.Sender, cfg *config.Config, log zerolog.Logger) *Notifier {
	n := &Notifier{
		market:   marketSvc,
		holdings: holdingsSvc,
		sender:   sender,
		cfg:      cfg,
		log:      log.With().Str("component", "notifier").Logger(),
		now:      time.Now,
	}
	n.task = scheduler.NewTask(scheduler.JobSummaryEmail, n.send)
	return n
}

// Task is the guarded send action
func (n *Notifier) Task() *scheduler.Task {
	return n.task
}

// UseScheduler lets Status report the next scheduled send
func (n *Notifier) UseScheduler(s *scheduler.Scheduler) {
	n.schedule = s
}

// Enabled reports whether sending is configured
func (n *Notifier) Enabled() bool {
	return n.sender.Enabled()
}

// Send builds and sends the summary now. It returns config.ErrNotConfigured without a
// Resend key or recipients and scheduler.ErrTaskRunning while another send is in flight.
func (n *Notifier) Send(ctx context.Context) (string, error) {
	if !n.Enabled() {
		return "", fmt.Errorf("email: %w", config.ErrNotConfigured)
	}
	if err := n.task.Run(ctx); err != nil {
		return "", err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastID, nil
}

func (n *Notifier) send(ctx context.Context) error {
	if !n.Enabled() {
		return fmt.Errorf("email: %w", config.ErrNotConfigured)
	}

	summary, err := n.Summary(ctx)
	if err == nil {
		var msg email.Message
		if msg, err = email.Render(*summary); err == nil {
			var id string
			if id, err = n.sender.Send(ctx, msg); err == nil {
				n.mu.Lock()
				n.sentCount++
				n.lastSent = n.now().UTC()
				n.lastID = id
				n.lastErr = ""
				n.mu.Unlock()
				return nil
			}
		}
	}

	n.mu.Lock()
	n.lastErr = err.Error()
	n.mu.Unlock()
	return err
}

// Summary collects the data shown in the email. ETF data is required; every other section
// is left out when its source fails.
func (n *Notifier) Summary(ctx context.Context) (*email.Summary, error) {
	etfs, err := n.market.ETFData(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	s := &email.Summary{
		GeneratedAt:  n.now().UTC(),
		TotalDollars: etfs.Value.TotalDailyDollars(),
		Groups:       groups(etfs.Value),
	}

	if coin, err := n.market.CoinMarket(ctx, false); err != nil {
		n.log.Warn().Err(err).Msg("Summary without coin price")
	} else {
		s.XRPPrice = coin.Value.PriceUSD
		s.XRPChange24h = coin.Value.Change24h
	}

	if sentiment, err := n.market.Sentiment(ctx, false); err != nil {
		n.log.Warn().Err(err).Msg("Summary without sentiment")
	} else {
		s.Sentiment = &email.SentimentLine{Score: sentiment.Value.Score, Label: sentiment.Value.Label}
	}

	if n.holdings != nil {
		if line, err := n.holdingsLine(ctx); err != nil {
			n.log.Warn().Err(err).Msg("Summary without exchange holdings")
		} else {
			s.Holdings = line
		}
	}

	if n.market.AIEnabled() {
		prompt := map[string]any{
			"etfDailyDollarVolume": s.TotalDollars,
			"xrpPriceUsd":          s.XRPPrice,
			"xrpChange24hPct":      s.XRPChange24h,
		}
		if s.Sentiment != nil {
			prompt["sentiment"] = s.Sentiment
		}
		if insight, err := n.market.Insights(ctx, prompt, false); err != nil {
			n.log.Warn().Err(err).Msg("Summary without AI analysis")
		} else {
			s.Insight = insight.Value
		}
	}
	return s, nil
}

func (n *Notifier) holdingsLine(ctx context.Context) (*email.HoldingsLine, error) {
	trend, err := n.holdings.Trend(ctx, 2)
	if err != nil {
		return nil, err
	}
	if len(trend.Points) == 0 {
		current, err := n.holdings.Current(ctx, false)
		if err != nil {
			return nil, err
		}
		return &email.HoldingsLine{Total: humanize.Comma(current.Value.Total.IntPart())}, nil
	}

	last := trend.Points[len(trend.Points)-1]
	line := &email.HoldingsLine{Total: humanize.Comma(last.Total.IntPart())}
	if len(trend.Points) > 1 {
		change := last.Change.IntPart()
		sign := "+"
		if change < 0 {
			sign = ""
		}
		line.Change = sign + humanize.Comma(change)
	}
	return line, nil
}

func groups(data *models.ETFData) []email.Group {
	out := make([]email.Group, 0, len(data.Groups))
	for _, name := range data.Groups {
		funds := data.Data[name]
		if len(funds) == 0 {
			continue
		}
		rows := make([]email.Row, 0, len(funds))
		for _, f := range funds {
			rows = append(rows, email.Row{
				Symbol:      f.Symbol,
				Description: f.Description,
				Price:       f.Price,
				Shares:      f.Daily.Shares,
				Dollars:     f.Daily.Dollars,
			})
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Dollars > rows[j].Dollars })
		out = append(out, email.Group{Name: name, Rows: rows})
	}
	return out
}

// Status reports delivery history and the next scheduled send
func (n *Notifier) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()

	status := Status{
		Enabled:    n.Enabled(),
		Recipients: len(n.cfg.EmailTo),
		Hours:      n.cfg.EmailHours,
		SentCount:  n.sentCount,
		LastID:     n.lastID,
		LastError:  n.lastErr,
		Running:    n.task.Running(),
	}
	if !n.lastSent.IsZero() {
		sent := n.lastSent
		status.LastSent = &sent
	}
	if n.schedule != nil {
		if next, ok := n.schedule.NextRun(scheduler.JobSummaryEmail); ok && !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}
