package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"xrp_etf_backend/models"
	"xrp_etf_backend/services/coingecko"
)

// MaxPostLength is the character limit of a post on X
const MaxPostLength = 280

const (
	postTopFunds = 3
	postHashtags = "#XRP #XRPETF #Crypto"
)

var siSuffix = strings.NewReplacer("k", "K", "G", "B")

// CompactUSD renders a dollar amount like $12.3M
func CompactUSD(v float64) string {
	if v < 1000 {
		return "$" + humanize.FtoaWithDigits(v, 0)
	}
	value, prefix := humanize.ComputeSI(v)
	return "$" + humanize.FtoaWithDigits(value, 1) + siSuffix.Replace(prefix)
}

// XPost drafts a social post from the cached ETF and coin data
func (s *Service) XPost(ctx context.Context) (*models.XPost, error) {
	etfs, err := s.ETFData(ctx, false)
	if err != nil {
		return nil, err
	}
	coin, err := s.CoinMarket(ctx, false)
	if err != nil {
		return nil, err
	}

	text := ComposePost(coin.Value, etfs.Value)
	return &models.XPost{
		Text:        text,
		Length:      utf8.RuneCountInString(text),
		GeneratedAt: s.now().UTC(),
	}, nil
}

// ComposePost builds the post text, dropping the fund breakdown if it would not fit
func ComposePost(coin *coingecko.Market, etfs *models.ETFData) string {
	headline := fmt.Sprintf("$XRP $%s (%+.2f%% 24h)", humanize.FormatFloat("#,###.####", coin.PriceUSD), coin.Change24h)
	volume := fmt.Sprintf("XRP ETFs traded %s today", CompactUSD(float64(etfs.TotalDailyDollars())))

	var funds []models.ETF
	for _, group := range etfs.Data {
		funds = append(funds, group...)
	}
	sort.Slice(funds, func(i, j int) bool {
		if funds[i].Daily.Dollars != funds[j].Daily.Dollars {
			return funds[i].Daily.Dollars > funds[j].Daily.Dollars
		}
		return funds[i].Symbol < funds[j].Symbol
	})

	var top []string
	for _, f := range funds[:min(postTopFunds, len(funds))] {
		if f.Daily.Dollars == 0 {
			break
		}
		top = append(top, fmt.Sprintf("$%s %s", f.Symbol, CompactUSD(float64(f.Daily.Dollars))))
	}

	lines := []string{headline, volume}
	if len(top) > 0 {
		lines = append(lines, "Top: "+strings.Join(top, " · "))
	}
	lines = append(lines, postHashtags)

	text := strings.Join(lines, "\n")
	if utf8.RuneCountInString(text) > MaxPostLength && len(top) > 0 {
		text = strings.Join([]string{headline, volume, postHashtags}, "\n")
	}
	if utf8.RuneCountInString(text) > MaxPostLength {
		text = string([]rune(text)[:MaxPostLength])
	}
	return text
}
