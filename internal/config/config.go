package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"arena/internal/arena"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EngineConfig carries the engine knobs shared by the api and the worker.
type EngineConfig struct {
	MatchesPerDay     int           `env:"ARENA_MATCHES_PER_DAY"     envDefault:"6"`
	LiveWindow        time.Duration `env:"ARENA_LIVE_WINDOW"         envDefault:"20m"`
	BaseWager         int64         `env:"ARENA_BASE_WAGER"          envDefault:"5"`
	FeePct            int           `env:"ARENA_FEE_PCT"             envDefault:"15"`
	PrizeBonusPct     int           `env:"ARENA_PRIZE_BONUS_PCT"     envDefault:"0"`
	RevengeWagerPct   int           `env:"ARENA_REVENGE_WAGER_PCT"   envDefault:"50"`
	RematchMultiplier float64       `env:"ARENA_REMATCH_MULTIPLIER"  envDefault:"1.25"`
	RematchTTL        time.Duration `env:"ARENA_REMATCH_TTL"         envDefault:"72h"`
	CooldownDays      int           `env:"ARENA_COOLDOWN_DAYS"       envDefault:"2"`
	KFactor           int           `env:"ARENA_K_FACTOR"            envDefault:"32"`
	LossPenaltyCoins  int64         `env:"ARENA_LOSS_PENALTY_COINS"  envDefault:"2"`
	LossPenaltyCap    int64         `env:"ARENA_LOSS_PENALTY_CAP"    envDefault:"5"`
	LossPenaltyXP     int64         `env:"ARENA_LOSS_PENALTY_XP"     envDefault:"5"`
	XPWin             int64         `env:"ARENA_XP_WIN"              envDefault:"20"`
	XPLoss            int64         `env:"ARENA_XP_LOSS"             envDefault:"5"`
	ModeWeights       string        `env:"ARENA_MODE_WEIGHTS"`
	SeedDemo          bool          `env:"ARENA_SEED_DEMO"           envDefault:"true"`
	DemoBalance       int64         `env:"ARENA_DEMO_BALANCE"        envDefault:"100"`
}

type APIConfig struct {
	Addr          string `env:"ARENA_API_ADDR" envDefault:":8080"`
	Port          string `env:"PORT"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBMaxConns    int32  `env:"ARENA_DB_MAX_CONNS" envDefault:"20"`
	RedisURL      string `env:"REDIS_URL"`
	OperatorToken string `env:"ARENA_OPERATOR_TOKEN"`
	Engine        EngineConfig
}

type WorkerConfig struct {
	DatabaseURL        string        `env:"DATABASE_URL"`
	DBMaxConns         int32         `env:"ARENA_DB_MAX_CONNS" envDefault:"5"`
	RedisURL           string        `env:"REDIS_URL"`
	TickEvery          time.Duration `env:"ARENA_TICK_EVERY" envDefault:"5m"`
	ResolveImmediately bool          `env:"ARENA_RESOLVE_IMMEDIATELY" envDefault:"false"`
	MetricsAddr        string        `env:"ARENA_WORKER_METRICS_ADDR" envDefault:":9091"`
	Engine             EngineConfig
}

type CLIConfig struct {
	APIBaseURL    string `env:"ARENA_API_BASE_URL" envDefault:"http://localhost:8080"`
	OperatorToken string `env:"ARENA_OPERATOR_TOKEN"`
	// APIBaseURLSet is true when ARENA_API_BASE_URL came from the
	// environment or .env rather than the default.
	APIBaseURLSet bool
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	if p := strings.TrimSpace(cfg.Port); p != "" {
		if !strings.HasPrefix(p, ":") {
			p = ":" + p
		}
		cfg.Addr = p
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.OperatorToken = strings.TrimSpace(cfg.OperatorToken)
	if cfg.DBMaxConns <= 0 {
		return cfg, fmt.Errorf("ARENA_DB_MAX_CONNS must be positive")
	}
	if _, err := cfg.Engine.Settings(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.TickEvery < time.Second {
		return cfg, fmt.Errorf("ARENA_TICK_EVERY must be at least 1s")
	}
	if _, err := cfg.Engine.Settings(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	if err := parse(&cfg); err != nil {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.OperatorToken = strings.TrimSpace(cfg.OperatorToken)
	if v, ok := os.LookupEnv("ARENA_API_BASE_URL"); ok && strings.TrimSpace(v) != "" {
		cfg.APIBaseURLSet = true
	}
	return cfg
}

func parse(target any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Settings validates the knobs and converts them for the engine.
func (c EngineConfig) Settings() (arena.Settings, error) {
	if c.MatchesPerDay < 1 || c.MatchesPerDay > arena.MaxMatchesPerDay {
		return arena.Settings{}, fmt.Errorf("ARENA_MATCHES_PER_DAY must be between 1 and %d", arena.MaxMatchesPerDay)
	}
	if c.LiveWindow <= 0 {
		return arena.Settings{}, fmt.Errorf("ARENA_LIVE_WINDOW must be positive")
	}
	if c.BaseWager < 0 {
		return arena.Settings{}, fmt.Errorf("ARENA_BASE_WAGER must not be negative")
	}
	if c.FeePct < 0 || c.FeePct > 100 {
		return arena.Settings{}, fmt.Errorf("ARENA_FEE_PCT must be between 0 and 100")
	}
	if c.RematchMultiplier < 1 || c.RematchMultiplier > arena.MaxRematchMultiplier {
		return arena.Settings{}, fmt.Errorf("ARENA_REMATCH_MULTIPLIER must be between 1 and %.2f", arena.MaxRematchMultiplier)
	}
	if c.KFactor <= 0 {
		return arena.Settings{}, fmt.Errorf("ARENA_K_FACTOR must be positive")
	}
	s := arena.DefaultSettings()
	s.MatchesPerDay = c.MatchesPerDay
	s.LiveWindow = c.LiveWindow
	s.BaseWager = c.BaseWager
	s.FeePct = c.FeePct
	s.PrizeBonusPct = c.PrizeBonusPct
	s.RevengeWagerPct = c.RevengeWagerPct
	s.RematchMultiplier = c.RematchMultiplier
	s.RematchTTL = c.RematchTTL
	s.CooldownDays = c.CooldownDays
	s.KFactor = c.KFactor
	s.LossPenaltyCoins = c.LossPenaltyCoins
	s.LossPenaltyCap = c.LossPenaltyCap
	s.LossPenaltyXP = c.LossPenaltyXP
	s.XPWin = c.XPWin
	s.XPLoss = c.XPLoss
	if strings.TrimSpace(c.ModeWeights) != "" {
		weights, err := ParseModeWeights(c.ModeWeights)
		if err != nil {
			return arena.Settings{}, err
		}
		s.ModeWeights = weights
	}
	return s, nil
}

// ParseModeWeights reads "MATH_RACE:3,COURT_TRIAL:1". Modes left out get
// weight zero.
func ParseModeWeights(raw string) (map[arena.Mode]float64, error) {
	out := make(map[arena.Mode]float64)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("mode weight %q: expected MODE:WEIGHT", part)
		}
		mode, err := arena.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("mode weight %q: %w", part, err)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("mode weight %q: weight must be a non-negative number", part)
		}
		out[mode] = w
	}
	var total float64
	for _, w := range out {
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("ARENA_MODE_WEIGHTS needs at least one positive weight")
	}
	return out, nil
}
