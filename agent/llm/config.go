package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	openrouterx "github.com/Yuvaramesh/sales-agent/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"gpt-4o-mini"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SupervisorModel       string  `envconfig:"SUPERVISOR_MODEL" split_words:"true"`
	PersonalModel         string  `envconfig:"PERSONAL_MODEL" split_words:"true"`
	CarModel              string  `envconfig:"CAR_MODEL" split_words:"true"`
	WebModel              string  `envconfig:"WEB_MODEL" split_words:"true"`
	SummarizerModel       string  `envconfig:"SUMMARIZER_MODEL" split_words:"true"`
	SupervisorTemperature float32 `envconfig:"SUPERVISOR_TEMPERATURE" split_words:"true" default:"-1"`
	SummarizerTemperature float32 `envconfig:"SUMMARIZER_TEMPERATURE" split_words:"true" default:"0"`
	// SummaryMaxTokens caps compaction and end-of-session summaries.
	SummaryMaxTokens int `envconfig:"SUMMARY_MAX_TOKENS" split_words:"true" default:"800"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature
	maxTokens := c.MaxCompletionToken

	switch agentType {
	case contractx.AgentTypeSupervisor:
		modelName = firstNonEmpty(c.SupervisorModel, modelName)
		if c.SupervisorTemperature >= 0 {
			temp = c.SupervisorTemperature
		}
	case contractx.AgentTypePersonal:
		modelName = firstNonEmpty(c.PersonalModel, modelName)
	case contractx.AgentTypeCar:
		modelName = firstNonEmpty(c.CarModel, modelName)
	case contractx.AgentTypeWeb:
		modelName = firstNonEmpty(c.WebModel, modelName)
	case contractx.AgentTypeSummarizer:
		modelName = firstNonEmpty(c.SummarizerModel, modelName)
		temp = c.SummarizerTemperature
		if c.SummaryMaxTokens > 0 {
			maxTokens = c.SummaryMaxTokens
		}
	}

	base := openrouterx.Config{
		BaseURL:  strings.TrimSpace(c.BaseURL),
		APIKey:   strings.TrimSpace(c.APIKey),
		Timeout:  c.Timeout,
		SiteURL:  strings.TrimSpace(c.SiteURL),
		SiteName: strings.TrimSpace(c.SiteName),
	}
	return base.WithModel(modelName, temp, maxTokens)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
