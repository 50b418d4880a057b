package enrichanalytics

import "time"

type Config struct {
	Timeout time.Duration
	// RowLimit caps the raw transaction rows loaded per request.
	RowLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  45 * time.Second,
		RowLimit: 500,
	}
}
