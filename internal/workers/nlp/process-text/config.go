package processtext

import "time"

type Config struct {
	Timeout time.Duration
	// UseConversation feeds the user's previous turn into the extraction
	// prompt and stores the new one afterwards.
	UseConversation bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		UseConversation: true,
	}
}
