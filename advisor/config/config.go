// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package config loads the service configuration once at startup from a
// YAML file with environment overrides. Validation is eager: a missing
// mandatory policy field fails startup, not the first request.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"strategos/core/advisor/agent"
	"strategos/core/advisor/llm"
	"strategos/core/advisor/safety"
)

// Duration wraps time.Duration for YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ProviderConfig configures one provider adapter.
type ProviderConfig struct {
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	Model           string   `yaml:"model"`
	APIKey          string   `yaml:"api_key"`
	APIKeySecretARN string   `yaml:"api_key_secret_arn"`
	BaseURL         string   `yaml:"base_url"`
	Region          string   `yaml:"region"`
	Timeout         Duration `yaml:"timeout"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	JWTSecret   string   `yaml:"jwt_secret"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// RoutingConfig configures the provider router.
type RoutingConfig struct {
	Strategy        string              `yaml:"strategy"`
	DefaultTimeout  Duration            `yaml:"default_timeout"`
	TaskPreferences map[string][]string `yaml:"task_preferences"`
	CostOrder       []string            `yaml:"cost_order"`
}

// PolicyConfig is the decision policy. All fields mandatory.
type PolicyConfig struct {
	ConfidenceThreshold float64          `yaml:"confidence_threshold"`
	RiskAppetite        string           `yaml:"risk_appetite"`
	MaxIterations       int              `yaml:"max_iterations"`
	RedLines            []safety.RedLine `yaml:"red_lines"`
}

// ContextConfig is the context policy for PERCEIVE retrieval.
type ContextConfig struct {
	MemoryLimit      int     `yaml:"memory_limit"`
	MinRelevance     float64 `yaml:"min_relevance"`
	MaxTokens        int     `yaml:"max_tokens"`
	MinSimilarity    float64 `yaml:"min_similarity"`
	MaxDocuments     int     `yaml:"max_documents"`
	MinQueryTokens   int     `yaml:"min_query_tokens"`
	OnEmptyRetrieval string  `yaml:"on_empty_retrieval"`
}

// ApprovalConfig configures the approval workflow and its store.
type ApprovalConfig struct {
	Expiration Duration `yaml:"expiration"`
	RedisAddr  string   `yaml:"redis_addr"`
}

// AuditConfig configures the audit trail. Empty DatabaseURL selects the
// in-memory trail.
type AuditConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// Config is the whole startup configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Providers []ProviderConfig `yaml:"providers"`
	Routing   RoutingConfig    `yaml:"routing"`
	Policy    PolicyConfig     `yaml:"policy"`
	Context   ContextConfig    `yaml:"context"`
	Approval  ApprovalConfig   `yaml:"approval"`
	Audit     AuditConfig      `yaml:"audit"`
	Corpus    []string         `yaml:"corpus"`
}

// Provider adapter types.
const (
	ProviderTypeAnthropic = "anthropic"
	ProviderTypeOpenAI    = "openai"
	ProviderTypeBedrock   = "bedrock"
)

// Load reads, overrides, and validates configuration from path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes raw YAML, applies environment overrides, defaults, and
// validation.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Environment overrides recognized at startup.
const (
	envListenAddr  = "ADVISOR_LISTEN_ADDR"
	envJWTSecret   = "ADVISOR_JWT_SECRET"
	envRedisAddr   = "ADVISOR_REDIS_ADDR"
	envDatabaseURL = "ADVISOR_DATABASE_URL"
)

// providerKeyEnv maps adapter types to the conventional key variable.
var providerKeyEnv = map[string]string{
	ProviderTypeAnthropic: "ANTHROPIC_API_KEY",
	ProviderTypeOpenAI:    "OPENAI_API_KEY",
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envListenAddr); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv(envJWTSecret); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		c.Approval.RedisAddr = v
	}
	if v := os.Getenv(envDatabaseURL); v != "" {
		c.Audit.DatabaseURL = v
	}
	for i := range c.Providers {
		if c.Providers[i].APIKey != "" || c.Providers[i].APIKeySecretARN != "" {
			continue
		}
		if envName, ok := providerKeyEnv[c.Providers[i].Type]; ok {
			c.Providers[i].APIKey = os.Getenv(envName)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Routing.Strategy == "" {
		c.Routing.Strategy = string(llm.RoutingStrategyBestAvailable)
	}
	if c.Routing.DefaultTimeout == 0 {
		c.Routing.DefaultTimeout = Duration(30 * time.Second)
	}
	if c.Approval.Expiration == 0 {
		c.Approval.Expiration = Duration(24 * time.Hour)
	}
}

// Validate enforces the mandatory policy surface.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider is required")
	}
	for _, p := range c.Providers {
		switch p.Type {
		case ProviderTypeAnthropic, ProviderTypeOpenAI, ProviderTypeBedrock:
		default:
			return fmt.Errorf("config: provider %q has unknown type %q", p.Name, p.Type)
		}
		if p.Name == "" {
			return fmt.Errorf("config: provider of type %q is missing a name", p.Type)
		}
		if p.Model == "" {
			return fmt.Errorf("config: provider %q is missing a model", p.Name)
		}
	}

	if !llm.IsValidRoutingStrategy(c.Routing.Strategy) {
		return fmt.Errorf("config: unknown routing strategy %q", c.Routing.Strategy)
	}

	if c.Policy.ConfidenceThreshold <= 0 || c.Policy.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: policy.confidence_threshold must be in (0,1], got %v", c.Policy.ConfidenceThreshold)
	}
	switch agent.RiskAppetite(c.Policy.RiskAppetite) {
	case agent.RiskAppetiteAverse, agent.RiskAppetiteNeutral, agent.RiskAppetiteSeeking:
	default:
		return fmt.Errorf("config: policy.risk_appetite must be averse, neutral, or seeking, got %q", c.Policy.RiskAppetite)
	}
	if c.Policy.MaxIterations < 1 {
		return fmt.Errorf("config: policy.max_iterations must be at least 1, got %d", c.Policy.MaxIterations)
	}
	// Red lines are compiled here so a bad pattern fails startup.
	if _, err := safety.NewContentFilter(c.Policy.RedLines); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch c.Context.OnEmptyRetrieval {
	case "", string(agent.OnEmptyFlag), string(agent.OnEmptyFail):
	default:
		return fmt.Errorf("config: context.on_empty_retrieval must be flag or fail, got %q", c.Context.OnEmptyRetrieval)
	}
	return nil
}

// DecisionPolicy converts to the agent's policy type.
func (c *Config) DecisionPolicy() agent.DecisionPolicy {
	return agent.DecisionPolicy{
		ConfidenceThreshold: c.Policy.ConfidenceThreshold,
		RiskAppetite:        agent.RiskAppetite(c.Policy.RiskAppetite),
		RedLines:            c.Policy.RedLines,
		MaxIterations:       c.Policy.MaxIterations,
	}
}

// ContextPolicy converts to the agent's context policy type.
func (c *Config) ContextPolicy() agent.ContextPolicy {
	return agent.ContextPolicy{
		MemoryLimit:      c.Context.MemoryLimit,
		MinRelevance:     c.Context.MinRelevance,
		MaxTokens:        c.Context.MaxTokens,
		MinSimilarity:    c.Context.MinSimilarity,
		MaxDocuments:     c.Context.MaxDocuments,
		MinQueryTokens:   c.Context.MinQueryTokens,
		OnEmptyRetrieval: agent.EmptyRetrievalBehavior(c.Context.OnEmptyRetrieval),
	}
}
