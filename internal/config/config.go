// Package config builds the immutable runtime configuration from CLI
// flags, an optional YAML file, and environment variable expansion.
//
// Precedence is flags > file > built-in defaults: the file only fills in
// flags the user did not set on the command line.
//
// Used by: main
// Connects to: every subsystem (carries their knobs)
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pixelframe/imgwatch/internal/backend"
)

// Mode selects how the process runs.
type Mode int

const (
	// ModeBatch processes existing files once and exits.
	ModeBatch Mode = iota
	// ModeMonitor watches for new files until interrupted.
	ModeMonitor
	// ModeCombined runs a batch pass and the monitor concurrently.
	ModeCombined
)

const defaultPrompt = "Create a detailed description for the image for proper image search functionality. " +
	"In the response, provide only the description without introductory words. " +
	"Also specify the image format (Wallpaper, Screenshot, Drawing, City photo, Selfie, etc.). " +
	"The format must be correct. If in doubt, name the most likely option and don't think too long."

// Config is the resolved runtime configuration.
type Config struct {
	Monitor        bool
	Combined       bool
	IgnoreExisting bool

	Root        string
	PostgresURL string

	Backend string
	APIKey  string
	Model   string
	Hosts   []string
	Prompt  string

	MaxConcurrent       int
	Timeout             time.Duration
	UnavailableDuration time.Duration
	FileWriteTimeout    time.Duration
	FileCheckInterval   time.Duration
	EventCooldown       time.Duration

	Debug bool
}

// Mode derives the run mode from the mode flags.
func (c *Config) Mode() Mode {
	switch {
	case c.Combined:
		return ModeCombined
	case c.Monitor:
		return ModeMonitor
	default:
		return ModeBatch
	}
}

// BackendKind converts the backend flag into a backend.Kind. Call Validate
// first; an unknown value maps to KindOllama.
func (c *Config) BackendKind() backend.Kind {
	if c.Backend == string(backend.KindOpenAICompat) {
		return backend.KindOpenAICompat
	}
	return backend.KindOllama
}

// fileConfig mirrors Config for the YAML file. Pointer fields distinguish
// "absent" from zero values.
type fileConfig struct {
	Monitor        *bool `yaml:"monitor"`
	Combined       *bool `yaml:"combined"`
	IgnoreExisting *bool `yaml:"ignore_existing"`

	Root        *string `yaml:"root"`
	PostgresURL *string `yaml:"postgres_url"`

	Backend *string   `yaml:"backend"`
	APIKey  *string   `yaml:"api_key"`
	Model   *string   `yaml:"model"`
	Hosts   []string  `yaml:"hosts"`
	Prompt  *string   `yaml:"prompt"`

	MaxConcurrent       *int      `yaml:"max_concurrent"`
	Timeout             *duration `yaml:"timeout"`
	UnavailableDuration *duration `yaml:"unavailable_duration"`
	FileWriteTimeout    *duration `yaml:"file_write_timeout"`
	FileCheckInterval   *duration `yaml:"file_check_interval"`
	EventCooldown       *duration `yaml:"event_cooldown"`

	Debug *bool `yaml:"debug"`
}

// duration parses YAML strings like "30s" or "2m".
type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = duration(parsed)
	return nil
}

// Load parses args (without the program name) into a Config. Errors and
// usage output go to errOut.
func Load(args []string, errOut io.Writer) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("imgwatch", flag.ContinueOnError)
	fs.SetOutput(errOut)

	configPath := fs.String("config", "", "path to a YAML config file filling unset flags")

	fs.BoolVar(&cfg.Monitor, "monitor", false, "watch for new preview files instead of a one-shot batch run")
	fs.BoolVar(&cfg.Combined, "combined", false, "process existing files and monitor for new ones")
	fs.BoolVar(&cfg.IgnoreExisting, "ignore-existing", false, "reprocess files that already have a description")

	fs.StringVar(&cfg.Root, "root", "/var/lib/immich", "media library root containing the thumbs/ directory")
	fs.StringVar(&cfg.PostgresURL, "postgres-url", "${DATABASE_URL}", "PostgreSQL connection string")

	fs.StringVar(&cfg.Backend, "backend", string(backend.KindOllama), "analysis backend: ollama or llamacpp")
	fs.StringVar(&cfg.APIKey, "api-key", "", "bearer token for the llamacpp backend (optional)")
	fs.StringVar(&cfg.Model, "model", "qwen3-vl:4b-thinking-q4_K_M", "vision model name")
	hosts := fs.String("hosts", "http://localhost:11434", "comma-separated backend host URLs")
	fs.StringVar(&cfg.Prompt, "prompt", defaultPrompt, "prompt sent with each image")

	fs.IntVar(&cfg.MaxConcurrent, "max-concurrent", 4, "maximum concurrent backend requests")
	fs.DurationVar(&cfg.Timeout, "timeout", time.Hour, "per-request backend timeout")
	fs.DurationVar(&cfg.UnavailableDuration, "unavailable-duration", time.Hour, "how long a failed host stays out of rotation")
	fs.DurationVar(&cfg.FileWriteTimeout, "file-write-timeout", 30*time.Second, "how long to wait for a file to finish writing")
	fs.DurationVar(&cfg.FileCheckInterval, "file-check-interval", 500*time.Millisecond, "file size polling interval")
	fs.DurationVar(&cfg.EventCooldown, "event-cooldown", 2*time.Second, "minimum time between runs triggered by the same filename")

	fs.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Hosts = splitHosts(*hosts)

	if *configPath != "" {
		if err := applyFile(cfg, fs, *configPath); err != nil {
			return nil, err
		}
	}

	cfg.expandEnvVars()
	return cfg, nil
}

// applyFile overlays file values onto cfg for every flag the command line
// left unset.
func applyFile(cfg *Config, fs *flag.FlagSet, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	applyBool := func(name string, dst *bool, src *bool) {
		if !set[name] && src != nil {
			*dst = *src
		}
	}
	applyString := func(name string, dst *string, src *string) {
		if !set[name] && src != nil {
			*dst = *src
		}
	}
	applyDuration := func(name string, dst *time.Duration, src *duration) {
		if !set[name] && src != nil {
			*dst = time.Duration(*src)
		}
	}

	applyBool("monitor", &cfg.Monitor, file.Monitor)
	applyBool("combined", &cfg.Combined, file.Combined)
	applyBool("ignore-existing", &cfg.IgnoreExisting, file.IgnoreExisting)
	applyBool("debug", &cfg.Debug, file.Debug)

	applyString("root", &cfg.Root, file.Root)
	applyString("postgres-url", &cfg.PostgresURL, file.PostgresURL)
	applyString("backend", &cfg.Backend, file.Backend)
	applyString("api-key", &cfg.APIKey, file.APIKey)
	applyString("model", &cfg.Model, file.Model)
	applyString("prompt", &cfg.Prompt, file.Prompt)

	if !set["hosts"] && len(file.Hosts) > 0 {
		cfg.Hosts = file.Hosts
	}
	if !set["max-concurrent"] && file.MaxConcurrent != nil {
		cfg.MaxConcurrent = *file.MaxConcurrent
	}

	applyDuration("timeout", &cfg.Timeout, file.Timeout)
	applyDuration("unavailable-duration", &cfg.UnavailableDuration, file.UnavailableDuration)
	applyDuration("file-write-timeout", &cfg.FileWriteTimeout, file.FileWriteTimeout)
	applyDuration("file-check-interval", &cfg.FileCheckInterval, file.FileCheckInterval)
	applyDuration("event-cooldown", &cfg.EventCooldown, file.EventCooldown)

	return nil
}

// Validate checks cross-field constraints and that the root directory
// exists. Call after Load, before wiring subsystems.
func (c *Config) Validate() error {
	if c.Monitor && c.Combined {
		return fmt.Errorf("--monitor and --combined are mutually exclusive")
	}
	if c.Backend != string(backend.KindOllama) && c.Backend != string(backend.KindOpenAICompat) {
		return fmt.Errorf("unknown backend %q (want %s or %s)",
			c.Backend, backend.KindOllama, backend.KindOpenAICompat)
	}
	if len(c.Hosts) == 0 {
		return fmt.Errorf("at least one backend host is required")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("--max-concurrent must be at least 1")
	}
	if c.PostgresURL == "" || strings.Contains(c.PostgresURL, "$") {
		return fmt.Errorf("postgres connection string is required (set --postgres-url or DATABASE_URL)")
	}

	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("root directory %s: %w", c.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", c.Root)
	}
	return nil
}

// envVarPattern matches $VAR and ${VAR}.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variables in every string setting.
func (c *Config) expandEnvVars() {
	c.Root = expandString(c.Root)
	c.PostgresURL = expandString(c.PostgresURL)
	c.APIKey = expandString(c.APIKey)
	c.Model = expandString(c.Model)
	c.Prompt = expandString(c.Prompt)
	for i, h := range c.Hosts {
		c.Hosts[i] = expandString(h)
	}
}

// expandString replaces $VAR and ${VAR} with the environment value, leaving
// the reference in place when the variable is unset.
func expandString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match
	})
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
