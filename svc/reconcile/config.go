package reconcile

import "time"

// Config is loaded from the environment.
type Config struct {
	WebhookSecret  string        `env:"STRIPE_WEBHOOK_SECRET"`
	BodyLimit      int64         `env:"WEBHOOK_BODY_LIMIT" envDefault:"1048576"`
	Tolerance      time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
	EventRetention time.Duration `env:"WEBHOOK_EVENT_RETENTION" envDefault:"720h"`
	PurgeInterval  time.Duration `env:"WEBHOOK_PURGE_INTERVAL" envDefault:"1h"`
}
