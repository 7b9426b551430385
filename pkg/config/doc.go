// Package config loads environment-driven configuration structs.
//
// Structs declare their variables with github.com/caarlos0/env tags. Load
// reads a local .env file once per process (via github.com/joho/godotenv),
// parses the struct and caches the result per type, so components that ask
// for the same config type share one parsed value:
//
//	var cfg gateway.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Parse skips the cache and is what tests use together with t.Setenv.
// App holds the process-level settings of the billingd binary.
package config
