// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local use against a relay on localhost.
	Development Environment = "development"
	// Production is for deployments against a shared relay.
	Production Environment = "production"
)

// Transport method names as written in configuration. These mirror the
// transport package's canonical method names.
const (
	MethodMesh        = "mesh"
	MethodRelayPeer   = "relay-peer"
	MethodServerRelay = "server-relay"
)

var knownMethods = []string{MethodMesh, MethodRelayPeer, MethodServerRelay}

// Config is the master configuration for parley and parley-relay.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment" toml:"environment" json:"environment"`

	// AppID scopes mesh signaling namespaces so unrelated deployments
	// sharing a board never see each other's rooms.
	AppID string `yaml:"app_id" toml:"app_id" json:"app_id"`

	// Transports configures the three transport adapters.
	Transports TransportsConfig `yaml:"transports" toml:"transports" json:"transports"`

	// Session configures the session controller.
	Session SessionConfig `yaml:"session" toml:"session" json:"session"`

	// Relay configures the parley-relay server.
	Relay RelayConfig `yaml:"relay" toml:"relay" json:"relay"`

	// Logging configures log output for both binaries.
	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`

	// Production is applied over the base values when Environment is
	// production.
	Production *Overrides `yaml:"production,omitempty" toml:"production,omitempty" json:"production,omitempty"`
}

// Overrides contains the fields a production section may override.
// Zero values leave the base value in place.
type Overrides struct {
	AppID      string            `yaml:"app_id" toml:"app_id" json:"app_id"`
	Transports *TransportsConfig `yaml:"transports,omitempty" toml:"transports,omitempty" json:"transports,omitempty"`
	Session    *SessionOverrides `yaml:"session,omitempty" toml:"session,omitempty" json:"session,omitempty"`
	Relay      *RelayConfig      `yaml:"relay,omitempty" toml:"relay,omitempty" json:"relay,omitempty"`
	Logging    *LoggingConfig    `yaml:"logging,omitempty" toml:"logging,omitempty" json:"logging,omitempty"`
}

// SessionOverrides is SessionConfig with an explicit-unset boolean.
type SessionOverrides struct {
	DefaultMethod     string `yaml:"default_method" toml:"default_method" json:"default_method"`
	FallbackOnFailure *bool  `yaml:"fallback_on_failure" toml:"fallback_on_failure" json:"fallback_on_failure"`
}

// TransportsConfig configures the transport adapters.
type TransportsConfig struct {
	// Enabled lists the methods in cascade priority order. Methods not
	// listed are never attempted.
	// Default: [mesh, relay-peer, server-relay]
	Enabled []string `yaml:"enabled" toml:"enabled" json:"enabled"`

	Mesh        MeshConfig        `yaml:"mesh" toml:"mesh" json:"mesh"`
	RelayPeer   RelayPeerConfig   `yaml:"relay_peer" toml:"relay_peer" json:"relay_peer"`
	ServerRelay ServerRelayConfig `yaml:"server_relay" toml:"server_relay" json:"server_relay"`
	ICE         ICEConfig         `yaml:"ice" toml:"ice" json:"ice"`
}

// MeshConfig configures the mesh transport.
type MeshConfig struct {
	// BoardURL is the http(s) base URL of the relay's signaling board.
	// Default: http://localhost:7600
	BoardURL string `yaml:"board_url" toml:"board_url" json:"board_url"`

	// PollInterval is how often the board is polled for members and
	// signals. Default: 2s
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`

	// OpenTimeout bounds the first announce. Default: 10s
	OpenTimeout Duration `yaml:"open_timeout" toml:"open_timeout" json:"open_timeout"`
}

// RelayPeerConfig configures the relay-peer transport.
type RelayPeerConfig struct {
	// BrokerURL is the ws(s) URL of the relay's peer broker.
	// Default: ws://localhost:7600/peer
	BrokerURL string `yaml:"broker_url" toml:"broker_url" json:"broker_url"`

	// OpenTimeout bounds the dial and the open reply. Default: 10s
	OpenTimeout Duration `yaml:"open_timeout" toml:"open_timeout" json:"open_timeout"`
}

// ServerRelayConfig configures the server-relay transport.
type ServerRelayConfig struct {
	// ServerURL is the ws(s) URL of the relay's hub.
	// Default: ws://localhost:7600/relay
	ServerURL string `yaml:"server_url" toml:"server_url" json:"server_url"`

	// OpenTimeout bounds the dial, the join, and the joined reply.
	// Default: 10s
	OpenTimeout Duration `yaml:"open_timeout" toml:"open_timeout" json:"open_timeout"`

	// WriteTimeout bounds each envelope write. Default: 5s
	WriteTimeout Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout"`
}

// ICEConfig lists the STUN and TURN servers used by the WebRTC
// transports.
type ICEConfig struct {
	Servers []ICEServer `yaml:"servers" toml:"servers" json:"servers"`
}

// ICEServer is one STUN or TURN server.
type ICEServer struct {
	URLs       []string `yaml:"urls" toml:"urls" json:"urls"`
	Username   string   `yaml:"username,omitempty" toml:"username,omitempty" json:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty" toml:"credential,omitempty" json:"credential,omitempty"`
}

// SessionConfig configures the session controller.
type SessionConfig struct {
	// DefaultMethod, when set, is tried alone on connect instead of the
	// cascade. It must be one of the enabled methods.
	DefaultMethod string `yaml:"default_method" toml:"default_method" json:"default_method"`

	// FallbackOnFailure makes an explicit method switch fall back to the
	// remaining enabled methods when the chosen one fails.
	// Default: false
	FallbackOnFailure bool `yaml:"fallback_on_failure" toml:"fallback_on_failure" json:"fallback_on_failure"`
}

// RelayConfig configures the parley-relay server.
type RelayConfig struct {
	// Listen is the TCP listen address. Default: :7600
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// MemberTTL is how long a board member survives without a
	// re-announce. Default: 30s
	MemberTTL Duration `yaml:"member_ttl" toml:"member_ttl" json:"member_ttl"`

	// WriteTimeout bounds each websocket write. Default: 5s
	WriteTimeout Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level" toml:"level" json:"level"`

	// Format is one of auto, text, json. Auto picks text on a terminal
	// and JSON otherwise. Default: auto
	Format string `yaml:"format" toml:"format" json:"format"`

	// File, when set, receives the log instead of stderr.
	File string `yaml:"file" toml:"file" json:"file"`
}

// Default returns the default configuration. It is a complete,
// valid configuration for a relay on localhost:7600.
func Default() *Config {
	return &Config{
		Environment: Development,
		AppID:       "parley",
		Transports: TransportsConfig{
			Enabled: slices.Clone(knownMethods),
			Mesh: MeshConfig{
				BoardURL:     "http://localhost:7600",
				PollInterval: Duration(2 * time.Second),
				OpenTimeout:  Duration(10 * time.Second),
			},
			RelayPeer: RelayPeerConfig{
				BrokerURL:   "ws://localhost:7600/peer",
				OpenTimeout: Duration(10 * time.Second),
			},
			ServerRelay: ServerRelayConfig{
				ServerURL:    "ws://localhost:7600/relay",
				OpenTimeout:  Duration(10 * time.Second),
				WriteTimeout: Duration(5 * time.Second),
			},
			ICE: ICEConfig{
				Servers: []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
			},
		},
		Relay: RelayConfig{
			Listen:       ":7600",
			MemberTTL:    Duration(30 * time.Second),
			WriteTimeout: Duration(5 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by PARLEY_CONFIG, or
// returns the expanded Default when it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("PARLEY_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults. The format
// follows the file extension.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.decode(filepath.Ext(path), data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// decode merges data in the format named by ext into c.
func (c *Config) decode(ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml":
		meta, err := toml.Decode(string(data), c)
		if err != nil {
			return err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
		return nil
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		return decoder.Decode(c)
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml, .toml, .json, or .jsonc)", ext)
	}
}

// applyEnvironmentOverrides applies the production section.
func (c *Config) applyEnvironmentOverrides() {
	if c.Environment != Production {
		return
	}
	overrides := c.Production
	if overrides == nil {
		overrides = &Overrides{
			Logging: &LoggingConfig{Level: "info", Format: "json"},
		}
	}

	if overrides.AppID != "" {
		c.AppID = overrides.AppID
	}

	if transports := overrides.Transports; transports != nil {
		if len(transports.Enabled) > 0 {
			c.Transports.Enabled = transports.Enabled
		}
		setString(&c.Transports.Mesh.BoardURL, transports.Mesh.BoardURL)
		setDuration(&c.Transports.Mesh.PollInterval, transports.Mesh.PollInterval)
		setDuration(&c.Transports.Mesh.OpenTimeout, transports.Mesh.OpenTimeout)
		setString(&c.Transports.RelayPeer.BrokerURL, transports.RelayPeer.BrokerURL)
		setDuration(&c.Transports.RelayPeer.OpenTimeout, transports.RelayPeer.OpenTimeout)
		setString(&c.Transports.ServerRelay.ServerURL, transports.ServerRelay.ServerURL)
		setDuration(&c.Transports.ServerRelay.OpenTimeout, transports.ServerRelay.OpenTimeout)
		setDuration(&c.Transports.ServerRelay.WriteTimeout, transports.ServerRelay.WriteTimeout)
		if len(transports.ICE.Servers) > 0 {
			c.Transports.ICE.Servers = transports.ICE.Servers
		}
	}

	if session := overrides.Session; session != nil {
		setString(&c.Session.DefaultMethod, session.DefaultMethod)
		if session.FallbackOnFailure != nil {
			c.Session.FallbackOnFailure = *session.FallbackOnFailure
		}
	}

	if relay := overrides.Relay; relay != nil {
		setString(&c.Relay.Listen, relay.Listen)
		setDuration(&c.Relay.MemberTTL, relay.MemberTTL)
		setDuration(&c.Relay.WriteTimeout, relay.WriteTimeout)
	}

	if logging := overrides.Logging; logging != nil {
		setString(&c.Logging.Level, logging.Level)
		setString(&c.Logging.Format, logging.Format)
		setString(&c.Logging.File, logging.File)
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func setDuration(target *Duration, value Duration) {
	if value != 0 {
		*target = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in URLs and paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Transports.Mesh.BoardURL = expandVars(c.Transports.Mesh.BoardURL, vars)
	c.Transports.RelayPeer.BrokerURL = expandVars(c.Transports.RelayPeer.BrokerURL, vars)
	c.Transports.ServerRelay.ServerURL = expandVars(c.Transports.ServerRelay.ServerURL, vars)
	for i := range c.Transports.ICE.Servers {
		server := &c.Transports.ICE.Servers[i]
		for j := range server.URLs {
			server.URLs[j] = expandVars(server.URLs[j], vars)
		}
		server.Username = expandVars(server.Username, vars)
		server.Credential = expandVars(server.Credential, vars)
	}
	c.Relay.Listen = expandVars(c.Relay.Listen, vars)
	c.Logging.File = expandVars(c.Logging.File, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.AppID == "" {
		errs = append(errs, errors.New("app_id is required"))
	}

	enabled := c.Transports.Enabled
	if len(enabled) == 0 {
		errs = append(errs, errors.New("transports.enabled must list at least one method"))
	}
	seen := make(map[string]bool, len(enabled))
	for _, method := range enabled {
		if !slices.Contains(knownMethods, method) {
			errs = append(errs, fmt.Errorf("transports.enabled: unknown method %q (want one of %v)", method, knownMethods))
		}
		if seen[method] {
			errs = append(errs, fmt.Errorf("transports.enabled: %q listed twice", method))
		}
		seen[method] = true
	}

	if seen[MethodMesh] {
		errs = append(errs, checkURL("transports.mesh.board_url", c.Transports.Mesh.BoardURL, "http", "https"))
		errs = append(errs, checkPositive("transports.mesh.poll_interval", c.Transports.Mesh.PollInterval))
		errs = append(errs, checkPositive("transports.mesh.open_timeout", c.Transports.Mesh.OpenTimeout))
	}
	if seen[MethodRelayPeer] {
		errs = append(errs, checkURL("transports.relay_peer.broker_url", c.Transports.RelayPeer.BrokerURL, "ws", "wss"))
		errs = append(errs, checkPositive("transports.relay_peer.open_timeout", c.Transports.RelayPeer.OpenTimeout))
	}
	if seen[MethodServerRelay] {
		errs = append(errs, checkURL("transports.server_relay.server_url", c.Transports.ServerRelay.ServerURL, "ws", "wss"))
		errs = append(errs, checkPositive("transports.server_relay.open_timeout", c.Transports.ServerRelay.OpenTimeout))
		errs = append(errs, checkPositive("transports.server_relay.write_timeout", c.Transports.ServerRelay.WriteTimeout))
	}
	for i, server := range c.Transports.ICE.Servers {
		if len(server.URLs) == 0 {
			errs = append(errs, fmt.Errorf("transports.ice.servers[%d]: urls is required", i))
		}
	}

	if method := c.Session.DefaultMethod; method != "" && !seen[method] {
		errs = append(errs, fmt.Errorf("session.default_method %q is not an enabled transport", method))
	}

	if c.Relay.Listen == "" {
		errs = append(errs, errors.New("relay.listen is required"))
	}
	errs = append(errs, checkPositive("relay.member_ttl", c.Relay.MemberTTL))
	errs = append(errs, checkPositive("relay.write_timeout", c.Relay.WriteTimeout))

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levels))
	}
	formats := []string{"auto", "text", "json"}
	if !slices.Contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	return errors.Join(errs...)
}

func checkURL(field, value string, schemes ...string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !slices.Contains(schemes, parsed.Scheme) || parsed.Host == "" {
		return fmt.Errorf("%s %q: want a %s URL with a host", field, value, strings.Join(schemes, " or "))
	}
	return nil
}

func checkPositive(field string, value Duration) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}
