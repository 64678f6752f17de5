package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Collect    CollectConfig    `yaml:"collect" mapstructure:"collect"`
	Naver      NaverConfig      `yaml:"naver" mapstructure:"naver"`
	RiseETF    RiseETFConfig    `yaml:"riseetf" mapstructure:"riseetf"`
	BigFinance BigFinanceConfig `yaml:"bigfinance" mapstructure:"bigfinance"`
	Notify     NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Workflow   WorkflowConfig   `yaml:"workflow" mapstructure:"workflow"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DataConfig configures where datasets live on disk.
type DataConfig struct {
	DataDir  string `yaml:"data_dir" mapstructure:"data_dir"`
	OutDir   string `yaml:"out_dir" mapstructure:"out_dir"`
	KeepTemp bool   `yaml:"keep_temp" mapstructure:"keep_temp"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// MatchConfig configures the holdings/industry matcher.
type MatchConfig struct {
	WindowDays       int    `yaml:"window_days" mapstructure:"window_days"`
	Workers          int    `yaml:"workers" mapstructure:"workers"`
	SuffixFile       string `yaml:"suffix_file" mapstructure:"suffix_file"`
	SuggestUnmatched bool   `yaml:"suggest_unmatched" mapstructure:"suggest_unmatched"`
	SuggestTopK      int    `yaml:"suggest_top_k" mapstructure:"suggest_top_k"`
}

// CollectConfig configures the collector engine.
type CollectConfig struct {
	Progress bool `yaml:"progress" mapstructure:"progress"`
}

// NaverConfig configures the Naver Finance news crawl.
type NaverConfig struct {
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	Sections    []string `yaml:"sections" mapstructure:"sections"`
	MaxPages    int      `yaml:"max_pages" mapstructure:"max_pages"`
	FetchBodies bool     `yaml:"fetch_bodies" mapstructure:"fetch_bodies"`
	Concurrency int      `yaml:"concurrency" mapstructure:"concurrency"`
	DelayMs     int      `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// RiseETFConfig configures the RISE ETF finder crawl.
type RiseETFConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// BigFinanceConfig configures the BigFinance industry API client.
type BigFinanceConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Username    string `yaml:"username" mapstructure:"username"`
	Password    string `yaml:"password" mapstructure:"password"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	DelayMs     int    `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// NotifyConfig configures the run-summary webhook.
type NotifyConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WorkflowConfig configures the Temporal worker and client.
type WorkflowConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BIGRISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "bigrise.db")
	v.SetDefault("data.data_dir", "data")
	v.SetDefault("data.out_dir", "out/bigRise")
	v.SetDefault("data.keep_temp", false)
	v.SetDefault("data.timezone", "Asia/Seoul")
	v.SetDefault("match.window_days", 7)
	v.SetDefault("match.workers", 8)
	v.SetDefault("match.suggest_top_k", 5)
	v.SetDefault("collect.progress", true)
	v.SetDefault("naver.base_url", "https://finance.naver.com")
	v.SetDefault("naver.sections", []string{"401", "402", "403", "404", "406", "429"})
	v.SetDefault("naver.max_pages", 10)
	v.SetDefault("naver.fetch_bodies", true)
	v.SetDefault("naver.concurrency", 3)
	v.SetDefault("naver.delay_ms", 200)
	v.SetDefault("riseetf.base_url", "https://www.riseetf.co.kr")
	v.SetDefault("riseetf.concurrency", 10)
	v.SetDefault("bigfinance.base_url", "https://www.bigfinance.co.kr")
	v.SetDefault("bigfinance.concurrency", 4)
	v.SetDefault("bigfinance.delay_ms", 300)
	v.SetDefault("notify.timeout_secs", 10)
	v.SetDefault("workflow.host_port", "localhost:7233")
	v.SetDefault("workflow.namespace", "default")
	v.SetDefault("workflow.task_queue", "bigrise")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for one execution mode. Collected
// problems come back as a single error so an operator can fix a config file
// in one pass.
func (c *Config) Validate(mode string) error {
	var problems []string

	appendStoreProblems := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	appendMatchProblems := func() {
		if c.Match.WindowDays < 0 {
			problems = append(problems, "match.window_days must be >= 0")
		}
		if c.Match.Workers < 0 || c.Match.Workers > 64 {
			problems = append(problems, "match.workers must be between 0 and 64")
		}
		if c.Data.OutDir == "" {
			problems = append(problems, "data.out_dir is required")
		}
	}

	appendCollectProblems := func() {
		if c.Data.DataDir == "" {
			problems = append(problems, "data.data_dir is required")
		}
		if c.Naver.Concurrency < 1 || c.Naver.Concurrency > 16 {
			problems = append(problems, "naver.concurrency must be between 1 and 16")
		}
		if c.RiseETF.Concurrency < 1 || c.RiseETF.Concurrency > 32 {
			problems = append(problems, "riseetf.concurrency must be between 1 and 32")
		}
		if c.BigFinance.Concurrency < 1 || c.BigFinance.Concurrency > 16 {
			problems = append(problems, "bigfinance.concurrency must be between 1 and 16")
		}
	}

	switch mode {
	case "match":
		appendMatchProblems()
	case "crawl":
		appendStoreProblems()
		appendCollectProblems()
	case "run":
		appendStoreProblems()
		appendCollectProblems()
		appendMatchProblems()
	case "serve":
		appendStoreProblems()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "worker":
		appendStoreProblems()
		appendCollectProblems()
		appendMatchProblems()
		if c.Workflow.HostPort == "" {
			problems = append(problems, "workflow.host_port is required")
		}
		if c.Workflow.TaskQueue == "" {
			problems = append(problems, "workflow.task_queue is required")
		}
	case "status":
		appendStoreProblems()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
