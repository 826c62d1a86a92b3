package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Login     string
	Token     string
	TokenFile string
	Output    string
	Verbose   bool
	Timeout   time.Duration
}

// Credentials is what the token file stores
type Credentials struct {
	Login string `json:"login"`
	Token string `json:"token"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("GAMECTL_SERVER", "http://localhost:8484"),
		Login:     os.Getenv("GAMECTL_LOGIN"),
		Token:     os.Getenv("GAMECTL_TOKEN"),
		TokenFile: getEnvOrDefault("GAMECTL_TOKEN_FILE", defaultTokenFile()),
		Output:    "text",
		Verbose:   false,
		Timeout:   5 * time.Second,
	}
}

// LoadCredentials fills Login and Token from the token file. A file saved
// for another login than the one requested is ignored.
func (c *Config) LoadCredentials() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No token file is fine
		}
		return err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}
	if c.Login != "" && c.Login != creds.Login {
		return nil
	}
	c.Login = creds.Login
	c.Token = creds.Token
	return nil
}

// SaveCredentials saves the login and token to the token file
func (c *Config) SaveCredentials(login, token string) error {
	c.Login = login
	c.Token = token

	dir := filepath.Dir(c.TokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(Credentials{Login: login, Token: token})
	if err != nil {
		return err
	}
	return os.WriteFile(c.TokenFile, data, 0600)
}

// ClearCredentials removes the token file
func (c *Config) ClearCredentials() error {
	c.Token = ""
	if err := os.Remove(c.TokenFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gamectl/token"
	}
	return filepath.Join(home, ".gamectl", "token")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
