// Package config содержит логику чтения конфигурации портала фестиваля.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmeshcher/festival-portal/internal/thepay"
)

// Config содержит параметры конфигурации портала фестиваля.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	SiteURL     string `env:"SITE_URL" envDefault:"https://festivalkratasy.cz"`

	ThePay ThePay
	SMTP   SMTP

	RegistrationFee thepay.Amount `env:"REGISTRATION_FEE" envDefault:"150.00"`
	Currency        string        `env:"CURRENCY" envDefault:"CZK"`

	StaffSecret     string `env:"STAFF_SECRET"`
	StaffInviteCode string `env:"STAFF_INVITE_CODE"`
}

// ThePay содержит реквизиты продавца в платёжном шлюзе.
type ThePay struct {
	MerchantID string `env:"THEPAY_MERCHANT_ID" envDefault:"1"`
	AccountID  string `env:"THEPAY_ACCOUNT_ID" envDefault:"1"`
	Password   string `env:"THEPAY_PASSWORD"`
	GateURL    string `env:"THEPAY_GATE_URL" envDefault:"https://www.thepay.cz/demo-gate/"`
	// Extra — фиксированные пары для каждого платежа, например данные EET: "eet_dph=...,eet_zaklad=...".
	Extra thepay.Pairs `env:"THEPAY_EXTRA"`
}

// SMTP содержит параметры почтового сервера.
type SMTP struct {
	Host     string        `env:"SMTP_HOST"`
	Port     int           `env:"SMTP_PORT" envDefault:"25"`
	User     string        `env:"SMTP_USER"`
	Password string        `env:"SMTP_PASSWORD"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`
}

// Parse считывает конфигурацию из .env, флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if cfg.RegistrationFee <= 0 {
		return nil, fmt.Errorf("registration fee: %w", thepay.ErrInvalidValue)
	}

	return cfg, nil
}

// Gateway возвращает настроенный клиент платёжного шлюза.
func (c *Config) Gateway() *thepay.Gateway {
	return &thepay.Gateway{
		MerchantID: c.ThePay.MerchantID,
		AccountID:  c.ThePay.AccountID,
		Password:   c.ThePay.Password,
		GateURL:    c.ThePay.GateURL,
		Extra:      c.ThePay.Extra,
	}
}
