package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the signer CLI.
// Passwords are never part of it; they are prompted with PromptPassword.
type Config struct {
	DBPath       string `envconfig:"DB_PATH" required:"true"`
	VaultPath    string `envconfig:"VAULT_PATH"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"text"`
	DefaultsFile string `envconfig:"DEFAULTS_FILE"`
	QRSize       int    `envconfig:"QR_SIZE" default:"256"`
	// QRFile receives signature QR codes; "-" prints them as base64 PNG instead.
	QRFile string `envconfig:"QR_FILE" default:"signature.png"`
}

const prefix = "COLDSIGNER"

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from COLDSIGNER_* environment variables.
func Init() error {
	c, err := Load()
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Load reads the configuration without touching the global instance.
func Load() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process(prefix, c); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if c.DBPath == "" {
		return nil, errors.New("COLDSIGNER_DB_PATH is empty")
	}
	if c.QRSize <= 0 {
		return nil, fmt.Errorf("QR size must be positive, got %d", c.QRSize)
	}
	if c.VaultPath == "" {
		c.VaultPath = c.DBPath + ".vault"
	}
	return c, nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetDBPath returns the cold database directory
func GetDBPath() string {
	return Get().DBPath
}

// GetVaultPath returns the seed vault file
func GetVaultPath() string {
	return Get().VaultPath
}

// PromptPassword asks for a password in the terminal without echoing it.
// The caller must clear the returned slice after use.
func PromptPassword(prompt string, allowEmpty bool) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal: run the command interactively to enter passwords")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 && !allowEmpty {
		return nil, errors.New("password cannot be empty")
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	clear(raw)
	return out, nil
}
