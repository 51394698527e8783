package saga

import "time"

// Config задаёт параметры оркестратора. Передаётся при создании, глобального состояния нет.
type Config struct {
	// Currency — валюта списаний.
	Currency string

	ValidateTimeout time.Duration
	PriceTimeout    time.Duration
	ReserveTimeout  time.Duration
	ChargeTimeout   time.Duration
	StoreTimeout    time.Duration
	ReleaseTimeout  time.Duration
	RefundTimeout   time.Duration
	AuditTimeout    time.Duration
	NotifyTimeout   time.Duration
	EventTimeout    time.Duration

	// DefaultListLimit и MaxListLimit ограничивают выдачу ListOrders.
	DefaultListLimit int
	MaxListLimit     int
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		Currency:         "usd",
		ValidateTimeout:  2 * time.Second,
		PriceTimeout:     2 * time.Second,
		ReserveTimeout:   3 * time.Second,
		ChargeTimeout:    10 * time.Second,
		StoreTimeout:     3 * time.Second,
		ReleaseTimeout:   3 * time.Second,
		RefundTimeout:    10 * time.Second,
		AuditTimeout:     time.Second,
		NotifyTimeout:    time.Second,
		EventTimeout:     time.Second,
		DefaultListLimit: 50,
		MaxListLimit:     500,
	}
}

// withDefaults подставляет значения по умолчанию для незаданных полей.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Currency == "" {
		c.Currency = def.Currency
	}
	durations := []struct {
		value *time.Duration
		def   time.Duration
	}{
		{&c.ValidateTimeout, def.ValidateTimeout},
		{&c.PriceTimeout, def.PriceTimeout},
		{&c.ReserveTimeout, def.ReserveTimeout},
		{&c.ChargeTimeout, def.ChargeTimeout},
		{&c.StoreTimeout, def.StoreTimeout},
		{&c.ReleaseTimeout, def.ReleaseTimeout},
		{&c.RefundTimeout, def.RefundTimeout},
		{&c.AuditTimeout, def.AuditTimeout},
		{&c.NotifyTimeout, def.NotifyTimeout},
		{&c.EventTimeout, def.EventTimeout},
	}
	for _, d := range durations {
		if *d.value <= 0 {
			*d.value = d.def
		}
	}
	if c.DefaultListLimit <= 0 {
		c.DefaultListLimit = def.DefaultListLimit
	}
	if c.MaxListLimit <= 0 {
		c.MaxListLimit = def.MaxListLimit
	}
	return c
}
