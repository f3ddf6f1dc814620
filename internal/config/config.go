// Package config loads the process configuration from the environment.
//
// Precedence is ENV > defaults. The only recognized variables are the
// ones read here; anything else in the environment is ignored.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppDirName is the per-user state directory under the home directory.
const AppDirName = ".lyric-export"

// Config is the fully resolved process configuration.
type Config struct {
	// Presenter upstream
	PresenterHost string
	PresenterPort int

	// Web server
	WebHost string
	WebPort int

	// OAuth (Google). Empty client ID means OAuth is not configured.
	GoogleClientID     string
	GoogleClientSecret string

	// TunnelURL is the public HTTPS base URL when running behind a
	// reverse tunnel. Empty when serving directly.
	TunnelURL string

	// CORSOrigins is the list of allowed browser origins.
	CORSOrigins []string

	// LogRetentionDays controls pruning of daily log files.
	LogRetentionDays int

	// RunMode is "production" or "development".
	RunMode string

	// DataDir is the root of all persisted state
	// (settings.json, users.json, aliases.json, auth.json, sessions/, logs/, uploads/).
	DataDir string
}

// FromEnv resolves the configuration from environment variables,
// applying defaults for everything unset.
func FromEnv() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg := Config{
		PresenterHost:      NormalizeHost(ParseString("PRESENTER_HOST", "127.0.0.1")),
		PresenterPort:      ParseInt("PRESENTER_PORT", 1025),
		WebHost:            ParseString("WEB_HOST", "0.0.0.0"),
		WebPort:            ParseInt("WEB_PORT", 3000),
		GoogleClientID:     ParseString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: ParseString("GOOGLE_CLIENT_SECRET", ""),
		TunnelURL:          strings.TrimRight(ParseString("TUNNEL_URL", ""), "/"),
		CORSOrigins:        splitCSV(ParseString("CORS_ORIGINS", "")),
		LogRetentionDays:   ParseInt("LOG_RETENTION_DAYS", 14),
		RunMode:            ParseString("RUN_MODE", "production"),
		DataDir:            filepath.Join(home, AppDirName),
	}

	if cfg.PresenterPort < 1 || cfg.PresenterPort > 65535 {
		return Config{}, fmt.Errorf("PRESENTER_PORT out of range: %d", cfg.PresenterPort)
	}
	if cfg.WebPort < 1 || cfg.WebPort > 65535 {
		return Config{}, fmt.Errorf("WEB_PORT out of range: %d", cfg.WebPort)
	}
	return cfg, nil
}

// PresenterBaseURL returns the upstream base URL for the Presenter API.
func (c Config) PresenterBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.PresenterHost, c.PresenterPort)
}

// PublicBaseURL returns the externally reachable base URL: the tunnel
// URL when configured, otherwise the server's own host and port.
func (c Config) PublicBaseURL() string {
	if c.TunnelURL != "" {
		return c.TunnelURL
	}
	host := c.WebHost
	if host == "0.0.0.0" || host == "::" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.WebPort)
}

// OAuthConfigured reports whether Google OAuth credentials are present.
func (c Config) OAuthConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// NormalizeHost coerces "localhost" to "127.0.0.1". The Presenter binds
// its API to IPv4 only, and on dual-stack hosts "localhost" may resolve
// to ::1 first.
func NormalizeHost(host string) string {
	if strings.EqualFold(strings.TrimSpace(host), "localhost") {
		return "127.0.0.1"
	}
	return strings.TrimSpace(host)
}

func splitCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
