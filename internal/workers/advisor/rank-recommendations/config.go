// internal/workers/advisor/rank-recommendations/config.go
package rankrecommendations

import "time"

type Config struct {
	MaxItems int
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxItems: 10,
		Timeout:  60 * time.Second,
	}
}
