package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360/semlink/driver"
	"github.com/c360/semlink/errors"
	"github.com/c360/semlink/natsclient"
	"github.com/c360/semlink/topics"
	"github.com/c360/semlink/vocabulary"
)

// Config represents the complete application configuration
type Config struct {
	Robot   RobotConfig   `json:"robot"   envPrefix:"ROBOT_"`
	NATS    NATSConfig    `json:"nats"    envPrefix:"NATS_"`
	Driver  DriverConfig  `json:"driver"  envPrefix:"DRIVER_"`
	Metrics MetricsConfig `json:"metrics" envPrefix:"METRICS_"`
	Tap     TapConfig     `json:"tap"     envPrefix:"TAP_"`
}

// RobotConfig identifies the robot on the bus
type RobotConfig struct {
	Name string `env:"NAME" json:"name"`
	Host string `env:"HOST" json:"host,omitempty"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string  `env:"URLS"           envSeparator:"," json:"urls,omitempty"`
	MaxReconnects int       `env:"MAX_RECONNECTS"                  json:"max_reconnects,omitempty"`
	ReconnectWait Duration  `env:"RECONNECT_WAIT"                  json:"reconnect_wait,omitempty"`
	Timeout       Duration  `env:"TIMEOUT"                         json:"timeout,omitempty"`
	DrainTimeout  Duration  `env:"DRAIN_TIMEOUT"                   json:"drain_timeout,omitempty"`
	Username      string    `env:"USERNAME"                        json:"username,omitempty"`
	Password      string    `env:"PASSWORD"                        json:"password,omitempty"`
	Token         string    `env:"TOKEN"                           json:"token,omitempty"`
	TLS           TLSConfig `json:"tls,omitempty" envPrefix:"TLS_"`
}

// TLSConfig for secure NATS connections
type TLSConfig struct {
	Enabled  bool   `env:"ENABLED"   json:"enabled"`
	CertFile string `env:"CERT_FILE" json:"cert_file,omitempty"`
	KeyFile  string `env:"KEY_FILE"  json:"key_file,omitempty"`
	CAFile   string `env:"CA_FILE"   json:"ca_file,omitempty"`
}

// DriverConfig holds the messaging options of one robot
type DriverConfig struct {
	// TransportAddress overrides nats.urls when set
	TransportAddress string         `env:"TRANSPORT_ADDRESS" json:"transportAddress,omitempty"`
	Lang             string         `env:"LANG"              json:"language"`
	DefaultToken     string         `env:"DEFAULT_TOKEN"     json:"defaultToken,omitempty"`
	MinTokenLength   int            `env:"MIN_TOKEN_LENGTH"  json:"minTokenLength"`
	CommandTree      map[string]any `json:"commandTree,omitempty"`
	// CommandTreeFile is a YAML or JSON file loaded when CommandTree is empty
	CommandTreeFile string       `env:"COMMAND_TREE_FILE" json:"commandTreeFile,omitempty"`
	Listen          ListenValue  `env:"LISTEN"            json:"listen"`
	TreeListenDepth int          `env:"TREE_LISTEN_DEPTH" json:"treeListenDepth"`
	Private         PrivateValue `env:"PRIVATE"           json:"privateTopic"`
	Global          string       `env:"GLOBAL"            json:"globalTopic,omitempty"`
	ReplyTo         string       `env:"REPLY_TO"          json:"replyTo,omitempty"`
	PruneInterval   Duration     `env:"PRUNE_INTERVAL"    json:"pruneInterval"`
	// PruneIntervalMs is accepted for compatibility and wins over PruneInterval
	PruneIntervalMs int64    `env:"PRUNE_INTERVAL_MS" json:"pruneIntervalMs,omitempty"`
	DedupWindow     Duration `env:"DEDUP_WINDOW"      json:"dedupWindow,omitempty"`
	PublishLanes    int      `env:"PUBLISH_LANES"     json:"publishLanes"`
	PublishQueue    int      `env:"PUBLISH_QUEUE"     json:"publishQueue"`
	DrainTimeout    Duration `env:"DRAIN_TIMEOUT"     json:"drainTimeout,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" json:"enabled"`
	Addr    string `env:"ADDR"    json:"addr"`
	Path    string `env:"PATH"    json:"path"`
}

// TapConfig controls the WebSocket event tap
type TapConfig struct {
	Enabled      bool     `env:"ENABLED"       json:"enabled"`
	Addr         string   `env:"ADDR"          json:"addr"`
	Path         string   `env:"PATH"          json:"path"`
	MaxClients   int      `env:"MAX_CLIENTS"   json:"max_clients"`
	PingInterval Duration `env:"PING_INTERVAL" json:"ping_interval"`
}

// Default returns the configuration used before any layer is applied
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			Timeout:       Duration(5 * time.Second),
			DrainTimeout:  Duration(30 * time.Second),
		},
		Driver: DriverConfig{
			Lang:           "en",
			MinTokenLength: driver.DefaultMinTokenLength,
			PruneInterval:  Duration(driver.DefaultPruneInterval),
			PublishLanes:   driver.DefaultPublishLanes,
			PublishQueue:   driver.DefaultPublishQueueSize,
			DrainTimeout:   Duration(driver.DefaultDrainTimeout),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Tap: TapConfig{
			Addr:         ":8090",
			Path:         "/events",
			MaxClients:   64,
			PingInterval: Duration(30 * time.Second),
		},
	}
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	var problem string
	d := c.Driver

	switch {
	case strings.TrimSpace(c.Robot.Name) == "":
		problem = "robot.name is required"
	case len(c.URLs()) == 0:
		problem = "nats.urls or driver.transportAddress is required"
	case d.MinTokenLength < 1:
		problem = fmt.Sprintf("driver.minTokenLength must be at least 1, got %d", d.MinTokenLength)
	case d.TreeListenDepth < 0:
		problem = fmt.Sprintf("driver.treeListenDepth must not be negative, got %d", d.TreeListenDepth)
	case c.PruneInterval() <= 0:
		problem = fmt.Sprintf("driver.pruneInterval must be positive, got %v", c.PruneInterval())
	case d.DedupWindow < 0:
		problem = "driver.dedupWindow must not be negative"
	case d.PublishLanes < 0 || d.PublishQueue < 0:
		problem = "driver.publishLanes and driver.publishQueue must not be negative"
	case c.PrivateTopic() != "" && c.PrivateTopic() == d.Global:
		problem = fmt.Sprintf("driver.privateTopic and driver.globalTopic must differ, both are %q", d.Global)
	case c.Tap.Enabled && c.Tap.Addr == "":
		problem = "tap.addr is required when the tap is enabled"
	case c.Metrics.Enabled && c.Metrics.Addr == "":
		problem = "metrics.addr is required when metrics are enabled"
	}
	if problem == "" {
		if _, ok := vocabulary.Lookup(d.Lang); !ok {
			problem = fmt.Sprintf("driver.language %q is not a registered language (have %s)",
				d.Lang, strings.Join(vocabulary.ListLanguages(), ", "))
		}
	}
	if problem == "" && d.CommandTree != nil {
		if _, err := vocabulary.FromMap(d.CommandTree); err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "check driver.commandTree")
		}
	}

	if problem == "" {
		return nil
	}
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, problem),
		"Config", "Validate", "check config")
}

// URLs returns the NATS servers, preferring driver.transportAddress
func (c *Config) URLs() []string {
	if c.Driver.TransportAddress != "" {
		return []string{c.Driver.TransportAddress}
	}
	var urls []string
	for _, u := range c.NATS.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// PruneInterval returns the effective dedup sweep interval
func (c *Config) PruneInterval() time.Duration {
	if c.Driver.PruneIntervalMs > 0 {
		return time.Duration(c.Driver.PruneIntervalMs) * time.Millisecond
	}
	return c.Driver.PruneInterval.Std()
}

// PrivateTopic resolves driver.privateTopic against the robot name
func (c *Config) PrivateTopic() string {
	return c.Driver.Private.Resolve(c.Robot.Name)
}

// DriverConfig converts the loaded settings into driver.Config
func (c *Config) DriverConfig() driver.Config {
	d := c.Driver
	cfg := driver.Config{
		Name:             c.Robot.Name,
		Host:             c.Robot.Host,
		ReplyTo:          d.ReplyTo,
		TreeListenDepth:  d.TreeListenDepth,
		MinTokenLength:   d.MinTokenLength,
		PrivateTopic:     c.PrivateTopic(),
		GlobalTopic:      d.Global,
		PruneInterval:    c.PruneInterval(),
		DedupWindow:      d.DedupWindow.Std(),
		PublishLanes:     d.PublishLanes,
		PublishQueueSize: d.PublishQueue,
		DrainTimeout:     d.DrainTimeout.Std(),
	}
	if d.Listen.IsSet() {
		cfg.Listen = topics.Listen{Channels: d.Listen.Channels, Text: d.Listen.Text}
	}
	return cfg
}

// Vocabulary builds the command matcher for driver.language over the command tree.
// readFile loads driver.commandTreeFile when the tree is not inline.
func (c *Config) Vocabulary(readFile func(string) ([]byte, error)) (*vocabulary.Matcher, error) {
	var (
		tree vocabulary.Tree
		err  error
	)
	switch {
	case c.Driver.CommandTree != nil:
		tree, err = vocabulary.FromMap(c.Driver.CommandTree)
	case c.Driver.CommandTreeFile != "":
		var data []byte
		data, err = readFile(c.Driver.CommandTreeFile)
		if err == nil {
			tree, err = vocabulary.LoadTree(data)
		}
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Vocabulary", "load command tree")
	}

	return vocabulary.New(c.Driver.Lang, tree, vocabulary.WithFallbackToken(c.Driver.DefaultToken))
}

// ClientOptions converts the NATS section into client options
func (c *Config) ClientOptions() []natsclient.ClientOption {
	n := c.NATS
	opts := []natsclient.ClientOption{
		natsclient.WithName("semlink-" + c.Robot.Name),
		natsclient.WithMaxReconnects(n.MaxReconnects),
	}
	if n.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(n.ReconnectWait.Std()))
	}
	if n.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(n.Timeout.Std()))
	}
	if n.DrainTimeout > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(n.DrainTimeout.Std()))
	}
	if n.Username != "" {
		opts = append(opts, natsclient.WithCredentials(n.Username, n.Password))
	}
	if n.Token != "" {
		opts = append(opts, natsclient.WithToken(n.Token))
	}
	if n.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(n.TLS.CertFile, n.TLS.KeyFile, n.TLS.CAFile))
	}
	return opts
}

// String renders the config with secrets redacted
func (c *Config) String() string {
	redacted := c.Clone()
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "[REDACTED]"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "[REDACTED]"
	}
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Sprintf("Config{robot: %s}", c.Robot.Name)
	}
	return string(data)
}
