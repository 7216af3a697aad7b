package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Cache TTLs per data source
const (
	ETFDataTTL          = 1 * time.Minute
	SentimentTTL        = 2 * time.Minute
	AIInsightsTTL       = 5 * time.Minute
	OnChainTTL          = 5 * time.Minute
	CoinGeckoTTL        = 10 * time.Minute
	RichListTTL         = 15 * time.Minute
	ExchangeHoldingsTTL = 30 * time.Minute
	HistoricalTTL       = 60 * time.Minute
)

// ErrNotConfigured is returned by features whose API key or recipients are missing
var ErrNotConfigured = errors.New("not configured")

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	CORSOrigins []string

	AnthropicAPIKey string
	AIModel         string
	AIBaseURL       string

	ResendAPIKey string
	ResendURL    string // API host override; empty uses the library default
	EmailFrom    string
	EmailTo      []string
	EmailSecret  string
	EmailHours   []int // UTC hours at which the summary email goes out

	SnapshotHour   int // UTC
	SnapshotMinute int

	LunarCrushAPIKey string
	CoinGeckoAPIKey  string

	YahooURL        string
	CoinGeckoURL    string
	XRPLRPCURL      string
	XRPScanURL      string
	FearGreedURL    string
	LunarCrushURL   string
	UpstreamTimeout time.Duration
	YahooRPS        int // requests per second to the chart endpoint

	DEXCurrency string // counter currency for the order book
	DEXIssuer   string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	ExchangeWallets map[string][]string
	ODLWallets      map[string][]string
	EscrowAccounts  []string
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	snapshotHour, snapshotMinute, err := ParseClock(getEnv("SNAPSHOT_TIME_UTC", "07:50"))
	if err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_TIME_UTC: %w", err)
	}

	emailHours, err := parseHours(getEnv("EMAIL_HOURS_UTC", "13,21"))
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_HOURS_UTC: %w", err)
	}

	escrow := DefaultEscrowAccounts
	if v := os.Getenv("ESCROW_ACCOUNTS"); v != "" {
		escrow = splitList(v)
	}

	config := &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AIModel:         getEnv("AI_MODEL", "claude-sonnet-4-5"),
		AIBaseURL:       getEnv("AI_BASE_URL", "https://api.anthropic.com/v1"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		ResendURL:    os.Getenv("RESEND_URL"),
		EmailFrom:    getEnv("EMAIL_FROM", "XRP ETF Tracker <alerts@resend.dev>"),
		EmailTo:      splitList(os.Getenv("EMAIL_TO")),
		EmailSecret:  os.Getenv("EMAIL_SECRET"),
		EmailHours:   emailHours,

		SnapshotHour:   snapshotHour,
		SnapshotMinute: snapshotMinute,

		LunarCrushAPIKey: os.Getenv("LUNARCRUSH_API_KEY"),
		CoinGeckoAPIKey:  os.Getenv("COINGECKO_API_KEY"),

		YahooURL:        getEnv("YAHOO_URL", "https://query1.finance.yahoo.com"),
		CoinGeckoURL:    getEnv("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		XRPLRPCURL:      getEnv("XRPL_RPC_URL", "https://xrplcluster.com"),
		XRPScanURL:      getEnv("XRPSCAN_URL", "https://api.xrpscan.com/api/v1"),
		FearGreedURL:    getEnv("FEAR_GREED_URL", "https://api.alternative.me/fng/"),
		LunarCrushURL:   getEnv("LUNARCRUSH_URL", "https://lunarcrush.com/api4/public"),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		YahooRPS:        getInt("YAHOO_RPS", 4),

		DEXCurrency: getEnv("DEX_CURRENCY", "USD"),
		DEXIssuer:   getEnv("DEX_ISSUER", "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B"),

		RateLimitRequests: getInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   getDuration("RATE_LIMIT_WINDOW", 60*time.Second),

		ExchangeWallets: walletsFromEnv("EXCHANGE_WALLETS", DefaultExchangeWallets),
		ODLWallets:      walletsFromEnv("ODL_WALLETS", DefaultODLWallets),
		EscrowAccounts:  escrow,
	}

	return config, nil
}

// AIEnabled reports whether an LLM key is configured
func (c *Config) AIEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// EmailEnabled reports whether outgoing email can be sent
func (c *Config) EmailEnabled() bool {
	return c.ResendAPIKey != "" && len(c.EmailTo) > 0
}

// ParseClock parses "HH:MM" into hour and minute
func ParseClock(value string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", value)
	}
	return hour, minute, nil
}

// MaskSecret masks a secret for logging
func MaskSecret(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-2:]
}

func parseHours(value string) ([]int, error) {
	var hours []int
	for _, part := range splitList(value) {
		hour, err := strconv.Atoi(part)
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("bad hour %q", part)
		}
		hours = append(hours, hour)
	}
	return hours, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
