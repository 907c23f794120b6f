package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kasuganosora/mathmon/server/game/battle"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
	// AdminIPs may hold plain addresses or CIDR ranges. Empty disables /api/admin.
	AdminIPs []string `mapstructure:"admin_ips"`
}

type LogConfig struct {
	File       string `mapstructure:"file"` // empty: stderr only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"` // empty: embedded game data
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql | memory
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	RedisPrefix     string        `mapstructure:"redis_prefix"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type GameConfig struct {
	Locale         string `mapstructure:"locale"`
	TimedLimitMs   int    `mapstructure:"timed_limit_ms"`
	TickMs         int    `mapstructure:"tick_ms"`
	AttackMs       int    `mapstructure:"attack_ms"`
	StatusMs       int    `mapstructure:"status_ms"`
	EnemyWindupMs  int    `mapstructure:"enemy_windup_ms"`
	EnemyHitMs     int    `mapstructure:"enemy_hit_ms"`
	TextMs         int    `mapstructure:"text_ms"`
	KOMs           int    `mapstructure:"ko_ms"`
	DefaultTier    string `mapstructure:"default_tier"`
	DailySalt      string `mapstructure:"daily_salt"`
	SaveSnapshots  bool   `mapstructure:"save_snapshots"`
	SessionKeep    int    `mapstructure:"session_keep"` // summaries kept per player in the cache
	IdleTimeoutS   int    `mapstructure:"idle_timeout_s"`
	ReapIntervalS  int    `mapstructure:"reap_interval_s"`
	EventBuffer    int    `mapstructure:"event_buffer"`
	JournalBatch   int    `mapstructure:"journal_batch"`
	JournalFlushMs int    `mapstructure:"journal_flush_ms"`
}

// Delays converts the millisecond settings into engine pacing. Unset
// fields keep the engine defaults.
func (g GameConfig) Delays() battle.Delays {
	d := battle.DefaultDelays()
	set := func(dst *time.Duration, ms int) {
		if ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
	set(&d.Attack, g.AttackMs)
	set(&d.Status, g.StatusMs)
	set(&d.EnemyWindup, g.EnemyWindupMs)
	set(&d.EnemyHit, g.EnemyHitMs)
	set(&d.Text, g.TextMs)
	set(&d.KO, g.KOMs)
	return d
}

func (g GameConfig) TimedLimit() time.Duration {
	return time.Duration(g.TimedLimitMs) * time.Millisecond
}

func (g GameConfig) Tick() time.Duration {
	return time.Duration(g.TickMs) * time.Millisecond
}

func (g GameConfig) IdleTimeout() time.Duration {
	return time.Duration(g.IdleTimeoutS) * time.Second
}

func (g GameConfig) ReapInterval() time.Duration {
	return time.Duration(g.ReapIntervalS) * time.Second
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket/SSE origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/mathmon.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.redis_prefix", "mathmon:")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("game.locale", "en")
	v.SetDefault("game.timed_limit_ms", 10000)
	v.SetDefault("game.tick_ms", 1000)
	v.SetDefault("game.default_tier", "normal")
	v.SetDefault("game.save_snapshots", true)
	v.SetDefault("game.session_keep", 50)
	v.SetDefault("game.idle_timeout_s", 1800)
	v.SetDefault("game.reap_interval_s", 60)
	v.SetDefault("game.event_buffer", 64)
	v.SetDefault("game.journal_batch", 100)
	v.SetDefault("game.journal_flush_ms", 2000)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 20)
	v.SetDefault("security.rate_limit_burst", 40)
}

// Load reads config from the given YAML file path. Environment variables
// prefixed with MATHMON_ override file values (MATHMON_SERVER_PORT etc).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix("mathmon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}
