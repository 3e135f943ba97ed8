// internal/workers/advisor/analyze-sustainability/config.go
package analyzesustainability

import "time"

type Config struct {
	MaxItems int
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxItems: 10,
		Timeout:  30 * time.Second,
	}
}
