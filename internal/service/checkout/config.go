package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCity город доставки, поле формы не редактируется.
	DefaultCity = "Lima"
	// DefaultShippingFee фиксированная стоимость доставки.
	DefaultShippingFee = "5.00"
)

// RetryConfig задаёт повтор вызова сервиса размещения при временных ошибках.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	defaults := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaults.MaxDelay
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = defaults.BackoffFactor
	}
	return c
}

// Config параметры checkout workflow.
type Config struct {
	City        string
	ShippingFee decimal.Decimal
	Retry       RetryConfig
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		City:        DefaultCity,
		ShippingFee: decimal.RequireFromString(DefaultShippingFee),
		Retry:       DefaultRetryConfig(),
	}
}
