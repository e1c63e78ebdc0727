package novix

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/novix-ai/novix/pkg/novix/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

const defaultServerURL = "http://localhost:3000"

// RootConfig holds flags shared by every command
type RootConfig struct {
	ConfigFile  string
	ServerURL   string
	LogLevel    string
	Development bool
	Version     string
}

// NewRootCmd creates the novix command tree
func NewRootCmd(version string) *cobra.Command {
	cfg := &RootConfig{Version: version}

	cmd := &cobra.Command{
		Use:   "novix",
		Short: "Novix AI agent marketplace",
		Long: `Novix runs the AI agent marketplace backend and talks to it.

Available subcommands:
  serve       Run the HTTP and WebSocket server
  chat        Chat with a marketplace agent over the socket surface
  sessions    List or remove live agent sessions
  catalog     Seed and search the agent catalog
  mcp         Serve marketplace tools over the Model Context Protocol

Examples:
  novix serve --config novix.yaml
  novix chat --server http://localhost:3000
  novix catalog seed listings.yaml`,
		SilenceUsage:  true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cfg.LogLevel, cfg.Development)
			if err != nil {
				return err
			}
			ctrllog.SetLogger(log)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "Path to a YAML settings file")
	flags.StringVar(&cfg.ServerURL, "server", envOrDefault("NOVIX_SERVER", defaultServerURL), "Base URL of a running novix server")
	flags.StringVar(&cfg.LogLevel, "log-level", envOrDefault("NOVIX_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.Development, "log-development", false, "Human friendly log output")

	cmd.AddCommand(NewServeCmd(cfg))
	cmd.AddCommand(NewChatCmd(cfg))
	cmd.AddCommand(NewSessionsCmd(cfg))
	cmd.AddCommand(NewCatalogCmd(cfg))
	cmd.AddCommand(NewMCPCmd(cfg))

	return cmd
}

// newLogger builds the zap backed logr used by every component. Output goes
// to stderr so that stdout stays free for command output.
func newLogger(level string, development bool) (logr.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logr.Discard(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zap.New(
		zap.UseDevMode(development),
		zap.Level(lvl),
		zap.WriteTo(os.Stderr),
	), nil
}

// loadSettings reads settings for commands that run server components and
// builds the logger they configure. Each flag named in keys overrides the
// settings key it maps to when set.
func loadSettings(cfg *RootConfig, flags *pflag.FlagSet, keys map[string]string) (*config.Settings, logr.Logger, error) {
	keys["log-level"] = "log.level"
	keys["log-development"] = "log.development"

	v := viper.New()
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, logr.Discard(), fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	settings, err := config.Load(v, cfg.ConfigFile)
	if err != nil {
		return nil, logr.Discard(), err
	}

	log, err := newLogger(settings.Log.Level, settings.Log.Development)
	if err != nil {
		return nil, logr.Discard(), err
	}
	return settings, log, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
