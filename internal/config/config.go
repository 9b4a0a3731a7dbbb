// Package config reads the bot configuration from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreFile = "file"
	StoreSQL  = "sql"
)

// Config is every option the orchestrator and session runner consume.
type Config struct {
	BaseURL       string `env:"BASE_URL" envDefault:"https://dropee.clicker-game-api.tropee.com/api/game"`
	IPCheckURL    string `env:"IP_CHECK_URL" envDefault:"https://api.ipify.org?format=json"`
	DataFile      string `env:"DATA_FILE" envDefault:"data.txt"`
	ProxyFile     string `env:"PROXY_FILE" envDefault:"proxy.txt"`
	UseProxy      bool   `env:"USE_PROXY" envDefault:"true"`
	UserAgentFile string `env:"USER_AGENT_FILE" envDefault:"session_user_agents.json"`

	TokenStore     string `env:"TOKEN_STORE" envDefault:"file"`
	TokenFile      string `env:"TOKEN_FILE" envDefault:"token.json"`
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL"`

	MaxThreads     int           `env:"MAX_THREADS" envDefault:"10"`
	CycleInterval  time.Duration `env:"CYCLE_INTERVAL" envDefault:"8m"`
	AccountTimeout time.Duration `env:"ACCOUNT_TIMEOUT" envDefault:"24h"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	MaxUpgradePrice float64    `env:"MAX_UPGRADE_PRICE" envDefault:"100000000"`
	SkipTasks       StringList `env:"SKIP_TASKS"`
	DailyCombo      StringList `env:"DAILY_COMBO"`
	DailyTasks      StringList `env:"DAILY_TASKS"`

	AutoTap         bool `env:"AUTO_TAP" envDefault:"false"`
	AutoAds         bool `env:"AUTO_ADS" envDefault:"false"`
	AutoSpin        bool `env:"AUTO_SPIN" envDefault:"false"`
	AutoAnswerDaily bool `env:"AUTO_ANSWER_DAILY" envDefault:"false"`
	AutoDailyCombo  bool `env:"AUTO_DAILY_COMBO" envDefault:"false"`
	AutoUpgrade     bool `env:"AUTO_UPGRADE" envDefault:"false"`
	AutoUpgradeMax  bool `env:"AUTO_UPGRADE_MAX" envDefault:"false"`
	AutoTask        bool `env:"AUTO_TASK" envDefault:"false"`

	RefID       string `env:"REF_ID" envDefault:"372y28fcFL5"`
	AnswerDaily string `env:"ANSWER_DAILY"`

	DelayBetweenRequests Range `env:"DELAY_BETWEEN_REQUESTS" envDefault:"[1,5]"`
	DelayBetweenGame     Range `env:"DELAY_BETWEEN_GAME" envDefault:"[5,10]"`
	DelayStartBot        Range `env:"DELAY_START_BOT" envDefault:"[1,15]"`
}

// Load reads an optional .env file (best-effort: a missing file is fine)
// and then the process environment.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv parses the process environment without touching .env files.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.RefID = strings.TrimSpace(cfg.RefID)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var ErrInvalid = errors.New("invalid config")

// Validate rejects settings the orchestrator cannot run with. The daily combo
// size is checked by the combo stage itself so a bad combo list only disables
// that feature.
func (c Config) Validate() error {
	var errs []error
	if c.MaxThreads <= 0 {
		errs = append(errs, fmt.Errorf("MAX_THREADS must be positive, got %d", c.MaxThreads))
	}
	if c.CycleInterval < 0 {
		errs = append(errs, fmt.Errorf("CYCLE_INTERVAL must not be negative"))
	}
	if c.AccountTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ACCOUNT_TIMEOUT must be positive"))
	}
	switch c.TokenStore {
	case StoreFile, StoreSQL:
	default:
		errs = append(errs, fmt.Errorf("TOKEN_STORE must be %q or %q, got %q", StoreFile, StoreSQL, c.TokenStore))
	}
	for name, r := range map[string]Range{
		"DELAY_BETWEEN_REQUESTS": c.DelayBetweenRequests,
		"DELAY_BETWEEN_GAME":     c.DelayBetweenGame,
		"DELAY_START_BOT":        c.DelayStartBot,
	} {
		if r.Min < 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("%s must be [min,max] with 0 <= min <= max, got [%d,%d]", name, r.Min, r.Max))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// StringList accepts a JSON array (single or double quoted) or a
// comma-separated list.
type StringList []string

func (l *StringList) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var out []string
		if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &out); err != nil {
			return fmt.Errorf("decode list %q: %w", s, err)
		}
		*l = out
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}

// Contains reports whether v is in the list.
func (l StringList) Contains(v string) bool {
	for _, s := range l {
		if s == v {
			return true
		}
	}
	return false
}

// Range is an inclusive [Min,Max] number of seconds.
type Range struct {
	Min int
	Max int
}

func (r *Range) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return fmt.Errorf("range %q: want [min,max]", string(b))
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return fmt.Errorf("range %q: %w", string(b), err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return fmt.Errorf("range %q: %w", string(b), err)
	}
	r.Min, r.Max = lo, hi
	return nil
}

// Pick draws a uniform duration in the range.
func (r Range) Pick() time.Duration {
	if r.Max <= r.Min {
		return time.Duration(r.Min) * time.Second
	}
	return time.Duration(r.Min+rand.IntN(r.Max-r.Min+1)) * time.Second
}
