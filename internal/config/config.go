package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseDSN   string `env:"DATABASE_URI"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	JWTUserSecret string `env:"JWT_USER_SECRET"`

	// Ключи платежных каналов. Канал без ключа не регистрируется и его вебхуки отклоняются.
	AlipayPublicKey string `env:"ALIPAY_PUBLIC_KEY"`
	WechatAPISecret string `env:"WECHAT_API_SECRET"`
	EpaySecret      string `env:"EPAY_SECRET"`

	GenerationAPIAddress string        `env:"GENERATION_API_ADDRESS"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL"`
}

func LoadConfig() (*Config, error) {
	var flagsConfig, envConfig Config

	if envParseErr := env.Parse(&envConfig); envParseErr != nil {
		return nil, fmt.Errorf("parse env config: %s", envParseErr.Error())
	}

	loadFlags(&flagsConfig)

	conf := mergeConfig(&envConfig, &flagsConfig)
	if conf.DatabaseDSN == "" {
		return nil, errors.New("database DSN is not set")
	}
	if conf.JWTUserSecret == "" {
		return nil, errors.New("JWT user secret is not set")
	}
	return conf, nil
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return config
}

func loadFlags(flagConfig *Config) {
	flag.StringVar(&flagConfig.RunAddress, "a", "localhost:8080", "Run address in format host:port")
	flag.StringVar(&flagConfig.DatabaseDSN, "d", "", "Database DSN")
	flag.StringVar(&flagConfig.MigrationsDir, "m", "internal/db/migrations", "Database migrations directory")
	flag.StringVar(&flagConfig.GenerationAPIAddress, "g", "", "Generation API base address")
	flag.DurationVar(&flagConfig.SweepInterval, "s", 30*time.Second, "Interval between credit sweep passes") //nolint:mnd

	flag.Parse()
}

func mergeConfig(envConfig, flagsConfig *Config) *Config {
	return &Config{
		RunAddress:           defaultIfBlank(envConfig.RunAddress, flagsConfig.RunAddress),
		DatabaseDSN:          defaultIfBlank(envConfig.DatabaseDSN, flagsConfig.DatabaseDSN),
		MigrationsDir:        defaultIfBlank(envConfig.MigrationsDir, flagsConfig.MigrationsDir),
		JWTUserSecret:        envConfig.JWTUserSecret,
		AlipayPublicKey:      envConfig.AlipayPublicKey,
		WechatAPISecret:      envConfig.WechatAPISecret,
		EpaySecret:           envConfig.EpaySecret,
		GenerationAPIAddress: defaultIfBlank(envConfig.GenerationAPIAddress, flagsConfig.GenerationAPIAddress),
		SweepInterval:        defaultIfZero(envConfig.SweepInterval, flagsConfig.SweepInterval),
	}
}

func defaultIfBlank(value string, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func defaultIfZero(value time.Duration, defaultValue time.Duration) time.Duration {
	if value == 0 {
		return defaultValue
	}
	return value
}
