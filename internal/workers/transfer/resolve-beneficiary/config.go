package resolvebeneficiary

import "time"

type Config struct {
	Timeout    time.Duration
	Index      string
	MaxResults int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    10 * time.Second,
		Index:      "beneficiaries",
		MaxResults: 5,
	}
}
