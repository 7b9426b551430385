package gateway

import "time"

// Config is populated from STRIPE_* and CUSTOMER_CACHE_* variables. An empty
// SecretKey leaves the gateway unconfigured.
type Config struct {
	SecretKey         string        `env:"STRIPE_SECRET_KEY"`
	CallTimeout       time.Duration `env:"STRIPE_CALL_TIMEOUT" envDefault:"10s"`
	MeterEventName    string        `env:"STRIPE_METER_EVENT_NAME" envDefault:"compute_usage"`
	CheckoutSuccess   string        `env:"STRIPE_CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:8080/billing/success"`
	CheckoutCancel    string        `env:"STRIPE_CHECKOUT_CANCEL_URL" envDefault:"http://localhost:8080/billing/cancel"`
	PortalReturnURL   string        `env:"STRIPE_PORTAL_RETURN_URL" envDefault:"http://localhost:8080/billing"`
	CustomerCacheTTL  time.Duration `env:"CUSTOMER_CACHE_TTL" envDefault:"1h"`
	CustomerCacheSize int           `env:"CUSTOMER_CACHE_SIZE" envDefault:"4096"`
}
