package app

import "github.com/charlesng35/expensely/internal/extraction"

// ModelConfig converts the extraction section into the model client settings.
func (c ExtractionConfig) ModelConfig() extraction.ModelConfig {
	return extraction.ModelConfig{
		Endpoint:  c.Endpoint,
		APIKey:    c.APIKey,
		Model:     c.Model,
		Timeout:   c.Timeout,
		MaxTokens: c.MaxTokens,
	}
}
