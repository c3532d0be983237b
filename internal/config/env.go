package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: the vault password is prompted at runtime and stored in memory,
// use GetVaultPasswordBytes().
type Config struct {
	Port            string `envconfig:"PORT" default:"8080"`
	DataDir         string `envconfig:"DATA_DIR" default:"."`
	WalletFile      string `envconfig:"WALLET_FILE" default:"aleo_wallet.dat"`
	SecurityFile    string `envconfig:"SECURITY_FILE" default:"security_config.json"`
	RPCURL          string `envconfig:"ALEO_RPC_URL" default:"https://testnet3.aleorpc.com"`
	SyncInterval    int    `envconfig:"SYNC_INTERVAL_SECONDS" default:"60"`
	PriceInterval   int    `envconfig:"PRICE_INTERVAL_SECONDS" default:"300"`
	KDFIterations   int    `envconfig:"KDF_ITERATIONS" default:"100000"`
	AutoLockTimeout int    `envconfig:"AUTO_LOCK_SECONDS" default:"300"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	cfg = &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetWalletPath returns the full path of the vault file.
func GetWalletPath() string {
	return filepath.Join(Get().DataDir, Get().WalletFile)
}

// GetSecurityPath returns the full path of the security profile file.
func GetSecurityPath() string {
	return filepath.Join(Get().DataDir, Get().SecurityFile)
}

// GetRPCURL returns the Aleo node RPC URL from configuration.
func GetRPCURL() string {
	return Get().RPCURL
}

// GetSyncInterval returns how often chain sync runs.
func GetSyncInterval() time.Duration {
	return time.Duration(Get().SyncInterval) * time.Second
}

// GetPriceInterval returns how often the market price refreshes.
func GetPriceInterval() time.Duration {
	return time.Duration(Get().PriceInterval) * time.Second
}

// GetKDFIterations returns the PBKDF2 iteration count for the vault.
func GetKDFIterations() int {
	return Get().KDFIterations
}

// GetAutoLockTimeout returns the inactivity auto-lock window.
func GetAutoLockTimeout() time.Duration {
	return time.Duration(Get().AutoLockTimeout) * time.Second
}

var passwordBytes []byte

// PromptForPassword prompts the user for the vault password in the terminal.
// The password is read without echoing (hidden input) and stored in memory.
// Call this at startup before the server begins handling requests.
func PromptForPassword() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run the app interactively to enter password")
	}
	fmt.Fprint(os.Stderr, "Enter wallet password: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	passwordBytes = make([]byte, len(raw))
	copy(passwordBytes, raw)
	clear(raw)
	return nil
}

// GetVaultPasswordBytes returns the password stored in memory (from
// PromptForPassword). An empty password means the vault runs unencrypted.
// Caller must zero the returned slice after use for security.
func GetVaultPasswordBytes() []byte {
	out := make([]byte, len(passwordBytes))
	copy(out, passwordBytes)
	return out
}
