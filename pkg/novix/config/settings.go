package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"k8s.io/utils/ptr"
)

// Busy policies applied when a second interaction arrives for a session that
// already has one in flight.
const (
	BusyPolicyReject = "reject"
	BusyPolicyQueue  = "queue"
)

// DefaultInstruction is the system prompt given to marketplace agents.
const DefaultInstruction = `You are a helpful agent designed to assist users in navigating the Novix AI Agent Marketplace. ` +
	`You can search the marketplace for agents that match what the user needs and explain their pricing, credits and capabilities. ` +
	`Before executing any wallet-related action, always confirm the wallet details are available by checking the wallet provider. ` +
	`If wallet details are missing, ask the user to attach a wallet to the session. ` +
	`For 5XX HTTP errors, ask the user to try again later. ` +
	`If a task is beyond your current tools, say so plainly. Be concise and helpful.`

// Settings is the process configuration for the marketplace server.
type Settings struct {
	Server  ServerSettings  `mapstructure:"server" yaml:"server"`
	Agent   AgentSettings   `mapstructure:"agent" yaml:"agent"`
	Session SessionSettings `mapstructure:"session" yaml:"session"`
	Wallet  WalletSettings  `mapstructure:"wallet" yaml:"wallet"`
	Catalog CatalogSettings `mapstructure:"catalog" yaml:"catalog"`
	Socket  SocketSettings  `mapstructure:"socket" yaml:"socket"`
	Log     LogSettings     `mapstructure:"log" yaml:"log"`
}

// ServerSettings holds HTTP server configuration
type ServerSettings struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// AgentSettings holds agent factory configuration
type AgentSettings struct {
	Instruction   string        `mapstructure:"instruction" yaml:"instruction"`
	MaxIterations int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	Model         ModelSettings `mapstructure:"model" yaml:"model"`
}

// ModelSettings is the flat, file/env friendly form of a ModelConfig.
type ModelSettings struct {
	Type        string   `mapstructure:"type" yaml:"type"`
	Model       string   `mapstructure:"model" yaml:"model"`
	APIKey      string   `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string   `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
}

// SessionSettings holds session registry and dispatcher configuration
type SessionSettings struct {
	IdleTTL            time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
	ReapInterval       time.Duration `mapstructure:"reap_interval" yaml:"reap_interval"`
	InteractionTimeout time.Duration `mapstructure:"interaction_timeout" yaml:"interaction_timeout"`
	BusyPolicy         string        `mapstructure:"busy_policy" yaml:"busy_policy"`
}

// WalletSettings holds wallet provider configuration
type WalletSettings struct {
	Network string `mapstructure:"network" yaml:"network"`
}

// CatalogSettings holds marketplace catalog storage configuration
type CatalogSettings struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// SocketSettings holds per-connection limits for the socket surface
type SocketSettings struct {
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

// LogSettings holds logger configuration
type LogSettings struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// DefaultSettings returns the configuration used when nothing overrides it
func DefaultSettings() *Settings {
	return &Settings{
		Server: ServerSettings{
			Host:           "0.0.0.0",
			Port:           3000,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   3 * time.Minute,
			AllowedOrigins: []string{"*"},
		},
		Agent: AgentSettings{
			Instruction:   DefaultInstruction,
			MaxIterations: 10,
			Model: ModelSettings{
				Type: ModelTypeOpenAI,
			},
		},
		Session: SessionSettings{
			IdleTTL:            30 * time.Minute,
			ReapInterval:       time.Minute,
			InteractionTimeout: 2 * time.Minute,
			BusyPolicy:         BusyPolicyReject,
		},
		Wallet: WalletSettings{
			Network: "base-sepolia",
		},
		Catalog: CatalogSettings{
			DSN: "file:novix.db?_pragma=busy_timeout(5000)",
		},
		Socket: SocketSettings{
			RateLimit: 5,
			Burst:     10,
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}

// modelDefaults fills per-provider values the user did not set.
var modelDefaults = map[string]ModelSettings{
	ModelTypeOpenAI: {
		Model:     "gpt-4o",
		MaxTokens: 4096,
	},
	ModelTypeAnthropic: {
		Model:     "claude-sonnet-4-5",
		MaxTokens: 4096,
	},
}

// apiKeyEnv lists the provider-native environment variables consulted when
// no key was configured explicitly.
var apiKeyEnv = map[string]string{
	ModelTypeOpenAI:    "OPENAI_API_KEY",
	ModelTypeAnthropic: "ANTHROPIC_API_KEY",
}

// Load reads settings from an optional YAML file and NOVIX_* environment
// variables on top of DefaultSettings. v may already carry bound flags.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v, DefaultSettings())

	v.SetEnvPrefix("NOVIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	s.Agent.Model.Type = canonicalModelType(s.Agent.Model.Type)
	if defaults, ok := modelDefaults[s.Agent.Model.Type]; ok {
		if err := mergo.Merge(&s.Agent.Model, defaults); err != nil {
			return nil, fmt.Errorf("failed to apply model defaults: %w", err)
		}
	}
	if s.Agent.Model.APIKey == "" {
		if env, ok := apiKeyEnv[s.Agent.Model.Type]; ok {
			s.Agent.Model.APIKey = os.Getenv(env)
		}
	}

	return &s, nil
}

func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("agent.instruction", d.Agent.Instruction)
	v.SetDefault("agent.max_iterations", d.Agent.MaxIterations)
	v.SetDefault("agent.model.type", d.Agent.Model.Type)
	v.SetDefault("agent.model.model", "")
	v.SetDefault("agent.model.api_key", "")
	v.SetDefault("agent.model.base_url", "")
	v.SetDefault("agent.model.max_tokens", 0)
	_ = v.BindEnv("agent.model.temperature")
	v.SetDefault("session.idle_ttl", d.Session.IdleTTL)
	v.SetDefault("session.reap_interval", d.Session.ReapInterval)
	v.SetDefault("session.interaction_timeout", d.Session.InteractionTimeout)
	v.SetDefault("session.busy_policy", d.Session.BusyPolicy)
	v.SetDefault("wallet.network", d.Wallet.Network)
	v.SetDefault("catalog.dsn", d.Catalog.DSN)
	v.SetDefault("socket.rate_limit", d.Socket.RateLimit)
	v.SetDefault("socket.burst", d.Socket.Burst)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

func canonicalModelType(t string) string {
	switch strings.ToLower(t) {
	case "openai":
		return ModelTypeOpenAI
	case "anthropic":
		return ModelTypeAnthropic
	default:
		return t
	}
}

// Validate reports every invalid setting at once. Provider credentials are
// not checked; a missing key surfaces as an agent initialization failure
// when a session is created.
func (s *Settings) Validate() error {
	var result *multierror.Error

	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port %d is out of range", s.Server.Port))
	}
	if s.Agent.MaxIterations <= 0 {
		result = multierror.Append(result, errors.New("agent.max_iterations must be positive"))
	}
	if _, ok := modelDefaults[s.Agent.Model.Type]; !ok {
		result = multierror.Append(result, fmt.Errorf("agent.model.type %q is not supported", s.Agent.Model.Type))
	}
	if s.Session.IdleTTL < 0 {
		result = multierror.Append(result, errors.New("session.idle_ttl must not be negative"))
	}
	if s.Session.IdleTTL > 0 && s.Session.ReapInterval <= 0 {
		result = multierror.Append(result, errors.New("session.reap_interval must be positive when idle_ttl is set"))
	}
	if s.Session.InteractionTimeout < 0 {
		result = multierror.Append(result, errors.New("session.interaction_timeout must not be negative"))
	}
	switch s.Session.BusyPolicy {
	case BusyPolicyReject, BusyPolicyQueue:
	default:
		result = multierror.Append(result, fmt.Errorf("session.busy_policy %q must be %q or %q",
			s.Session.BusyPolicy, BusyPolicyReject, BusyPolicyQueue))
	}
	if s.Catalog.DSN == "" {
		result = multierror.Append(result, errors.New("catalog.dsn is required"))
	}

	return result.ErrorOrNil()
}

// Addr returns the listen address for the HTTP server.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Server.Host, s.Server.Port)
}

// AgentConfig converts the flat settings into the typed agent configuration
// consumed by the agent factory.
func (s *Settings) AgentConfig() *AgentConfig {
	return &AgentConfig{
		Model:         s.Agent.Model.ModelConfig(),
		Instruction:   s.Agent.Instruction,
		MaxIterations: s.Agent.MaxIterations,
	}
}

// ModelConfig builds the typed model configuration. Unknown types yield a
// BaseModelConfig whose Validate reports the problem.
func (m ModelSettings) ModelConfig() ModelConfig {
	var apiKey, baseURL *string
	var maxTokens *int
	if m.APIKey != "" {
		apiKey = ptr.To(m.APIKey)
	}
	if m.BaseURL != "" {
		baseURL = ptr.To(m.BaseURL)
	}
	if m.MaxTokens > 0 {
		maxTokens = ptr.To(m.MaxTokens)
	}

	switch canonicalModelType(m.Type) {
	case ModelTypeOpenAI:
		return &OpenAIConfig{
			BaseModelConfig: BaseModelConfig{ModelType: ModelTypeOpenAI},
			Model:           m.Model,
			BaseURL:         baseURL,
			MaxTokens:       maxTokens,
			Temperature:     m.Temperature,
			APIKey:          apiKey,
		}
	case ModelTypeAnthropic:
		return &AnthropicConfig{
			BaseModelConfig: BaseModelConfig{ModelType: ModelTypeAnthropic},
			Model:           m.Model,
			BaseURL:         baseURL,
			MaxTokens:       maxTokens,
			Temperature:     m.Temperature,
			APIKey:          apiKey,
		}
	default:
		return &BaseModelConfig{ModelType: m.Type}
	}
}
