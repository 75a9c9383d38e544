// Package config loads swaggermcp configuration from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ibrahimsaleem/Swaggermcp/internal/observability"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/orchestrator"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/workspace"
)

// EnvPrefix prefixes every environment override, e.g. SWAGGERMCP_SERVER_LISTEN.
const EnvPrefix = "SWAGGERMCP"

// Config holds the swaggermcp configuration
type Config struct {
	Server     ServerConfig                `mapstructure:"server"`
	Workspace  workspace.Config            `mapstructure:"workspace"`
	Pipeline   orchestrator.Config         `mapstructure:"pipeline"`
	Supervisor SupervisorConfig            `mapstructure:"supervisor"`
	Revisions  RevisionsConfig             `mapstructure:"revisions"`
	Metrics    MetricsConfig               `mapstructure:"metrics"`
	Tracing    observability.TracingConfig `mapstructure:"tracing"`
	Log        LogConfig                   `mapstructure:"log"`
}

// ServerConfig holds the admin API configuration
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SupervisorConfig controls how the generated service is run
type SupervisorConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Command            []string      `mapstructure:"command"`
	Env                []string      `mapstructure:"env"`
	CleanEnv           bool          `mapstructure:"clean_env"`
	ProbeInterval      time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout       time.Duration `mapstructure:"probe_timeout"`
	KillGrace          time.Duration `mapstructure:"kill_grace"`
	PortReleaseTimeout time.Duration `mapstructure:"port_release_timeout"`
	StopTimeout        time.Duration `mapstructure:"stop_timeout"`
	Reload             bool          `mapstructure:"reload"`
	ReloadDebounce     time.Duration `mapstructure:"reload_debounce"`
	LogTail            int           `mapstructure:"log_tail"`
}

// RevisionsConfig locates the revision history. An empty Path disables it.
type RevisionsConfig struct {
	Path string `mapstructure:"path"`
	Keep int    `mapstructure:"keep"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	ws := workspace.DefaultConfig()
	pipe := orchestrator.DefaultConfig()

	v.SetDefault("server.listen", "127.0.0.1:8000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("workspace.dir", ws.Dir)
	v.SetDefault("workspace.uploads_dir", ws.UploadsDir)
	v.SetDefault("workspace.document_name", ws.DocumentName)
	v.SetDefault("workspace.module_path", ws.ModulePath)
	v.SetDefault("workspace.go_version", ws.GoVersion)

	v.SetDefault("pipeline.title", pipe.Title)
	v.SetDefault("pipeline.start_timeout", pipe.StartTimeout)
	v.SetDefault("pipeline.max_upload_bytes", pipe.MaxUploadBytes)
	v.SetDefault("pipeline.upload_rate", pipe.UploadRate)
	v.SetDefault("pipeline.upload_burst", pipe.UploadBurst)

	v.SetDefault("supervisor.host", "127.0.0.1")
	v.SetDefault("supervisor.port", 8001)
	v.SetDefault("supervisor.command", []string{"go", "run"})
	v.SetDefault("supervisor.env", []string{})
	v.SetDefault("supervisor.clean_env", false)
	v.SetDefault("supervisor.probe_interval", 500*time.Millisecond)
	v.SetDefault("supervisor.probe_timeout", 2*time.Second)
	v.SetDefault("supervisor.kill_grace", 2*time.Second)
	v.SetDefault("supervisor.port_release_timeout", 5*time.Second)
	v.SetDefault("supervisor.stop_timeout", 5*time.Second)
	v.SetDefault("supervisor.reload", false)
	v.SetDefault("supervisor.reload_debounce", time.Second)
	v.SetDefault("supervisor.log_tail", 200)

	v.SetDefault("revisions.path", ".swaggermcp/revisions.db")
	v.SetDefault("revisions.keep", 100)

	v.SetDefault("metrics.namespace", "swaggermcp")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.output", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. With an empty path, swaggermcp.yaml is looked up
// in the working directory and $HOME/.swaggermcp; a missing file is not an
// error. Flags whose name matches a key are bound on top, so flags beat
// environment, environment beats file, file beats defaults.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("swaggermcp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.swaggermcp")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("server.listen must not be empty")
	}
	if c.Supervisor.Port <= 0 || c.Supervisor.Port > 65535 {
		return fmt.Errorf("supervisor.port %d out of range", c.Supervisor.Port)
	}
	if len(c.Supervisor.Command) == 0 {
		return errors.New("supervisor.command must name an executable")
	}
	if c.Pipeline.StartTimeout <= 0 {
		return errors.New("pipeline.start_timeout must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name onto slog.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
