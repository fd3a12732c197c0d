package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Invitation InvitationConfig `mapstructure:"invitation"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	BaseURL        string        `mapstructure:"base_url"`
	CORS           CORSConfig    `mapstructure:"cors"`
	BodyLimit      int64         `mapstructure:"body_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
//
// Token 由外部认证服务签发，本服务只负责校验。
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	Service     string   `mapstructure:"service"`      // 写入每条日志的 service 字段
	OutputPaths []string `mapstructure:"output_paths"` // 为空时输出到 stderr
}

// InvitationConfig 邀请码配置
type InvitationConfig struct {
	DefaultTTL          time.Duration `mapstructure:"default_ttl"` // 普通邀请（7 天）
	LinkTTL             time.Duration `mapstructure:"link_ttl"`    // 可分享的加入链接（90 天）
	MaxTTL              time.Duration `mapstructure:"max_ttl"`
	MaxGenerateAttempts int           `mapstructure:"max_generate_attempts"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"` // 0 表示不启动清理任务
	PurgeAfter          time.Duration `mapstructure:"purge_after"`    // 0 表示只标记不删除
	RedeemRateLimit     int           `mapstructure:"redeem_rate_limit"`
	RedeemRateWindow    time.Duration `mapstructure:"redeem_rate_window"`
}

// LedgerConfig 奖励账本配置
type LedgerConfig struct {
	MaxPointsPerTransfer int64 `mapstructure:"max_points_per_transfer"`
	ReconcileBatchSize   int   `mapstructure:"reconcile_batch_size"`
}

// NATSConfig 领域事件总线配置
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("BLOCKWARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.request_timeout", "10s")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "blockward")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.issuer", "blockward")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.service", "blockward-ledger")

	v.SetDefault("invitation.default_ttl", "168h")
	v.SetDefault("invitation.link_ttl", "2160h")
	v.SetDefault("invitation.max_ttl", "2160h")
	v.SetDefault("invitation.max_generate_attempts", 5)
	v.SetDefault("invitation.sweep_interval", "1h")
	v.SetDefault("invitation.purge_after", "720h")
	v.SetDefault("invitation.redeem_rate_limit", 20)
	v.SetDefault("invitation.redeem_rate_window", "1m")

	v.SetDefault("ledger.max_points_per_transfer", 10000)
	v.SetDefault("ledger.reconcile_batch_size", 500)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "blockward")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Invitation.DefaultTTL <= 0 || c.Invitation.LinkTTL <= 0 {
		return fmt.Errorf("配置校验失败: invitation.default_ttl / link_ttl 必须大于 0")
	}
	if c.Invitation.MaxTTL < c.Invitation.DefaultTTL || c.Invitation.MaxTTL < c.Invitation.LinkTTL {
		return fmt.Errorf("配置校验失败: invitation.max_ttl 不能小于默认有效期")
	}
	if c.Invitation.MaxGenerateAttempts < 1 || c.Invitation.MaxGenerateAttempts > 10 {
		return fmt.Errorf("配置校验失败: invitation.max_generate_attempts 必须在 1-10 之间")
	}
	if c.Ledger.MaxPointsPerTransfer < 0 {
		return fmt.Errorf("配置校验失败: ledger.max_points_per_transfer 不能为负数")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("配置校验失败: 启用 nats 时 nats.url 不能为空")
	}
	return nil
}
