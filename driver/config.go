package driver

import (
	"fmt"
	"os"
	"time"

	"github.com/c360/semlink/errors"
	"github.com/c360/semlink/topics"
)

// Defaults
const (
	DefaultMinTokenLength   = 4
	DefaultPruneInterval    = 10 * time.Second
	DefaultPublishLanes     = 4
	DefaultPublishQueueSize = 256
	DefaultDrainTimeout     = 5 * time.Second
)

// Config describes one robot's place on the bus
type Config struct {
	// Name is stamped as sender.name on every envelope
	Name string
	// Host is stamped as sender.host; defaults to the machine hostname
	Host string

	// ReplyTopic is advertised as sender.topic so peers can reply.
	// Defaults to PrivateTopic.
	ReplyTopic string
	// ReplyTo is advertised as the top-level replyTo field when set
	ReplyTo string

	// Listen is the explicit channel list or free text to tokenize
	Listen topics.Listen
	// TreeListenDepth adds command tree keys down to this many levels; 0 disables
	TreeListenDepth int
	// MinTokenLength drops shorter tokens when deriving channels
	MinTokenLength int

	// PrivateTopic receives directly addressed traffic; empty disables
	PrivateTopic string
	// GlobalTopic receives broadcast traffic; empty disables
	GlobalTopic string

	// PruneInterval is how often the dedup sweep runs
	PruneInterval time.Duration
	// DedupWindow is how long an identity is remembered; defaults to PruneInterval
	DedupWindow time.Duration

	// PublishLanes and PublishQueueSize size the outbound FIFO lanes
	PublishLanes     int
	PublishQueueSize int
	// DrainTimeout bounds how long Halt waits for queued publishes
	DrainTimeout time.Duration
}

// DefaultConfig returns a config with documented defaults and the given name
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MinTokenLength:   DefaultMinTokenLength,
		PruneInterval:    DefaultPruneInterval,
		PublishLanes:     DefaultPublishLanes,
		PublishQueueSize: DefaultPublishQueueSize,
		DrainTimeout:     DefaultDrainTimeout,
	}
}

// withDefaults fills zero values that have a meaningful default
func (c Config) withDefaults() Config {
	if c.Host == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.Host = host
		} else {
			c.Host = "localhost"
		}
	}
	if c.ReplyTopic == "" {
		c.ReplyTopic = c.PrivateTopic
	}
	if c.MinTokenLength == 0 {
		c.MinTokenLength = DefaultMinTokenLength
	}
	if c.PruneInterval == 0 {
		c.PruneInterval = DefaultPruneInterval
	}
	if c.DedupWindow == 0 {
		c.DedupWindow = c.PruneInterval
	}
	if c.PublishLanes == 0 {
		c.PublishLanes = DefaultPublishLanes
	}
	if c.PublishQueueSize == 0 {
		c.PublishQueueSize = DefaultPublishQueueSize
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	return c
}

// Validate reports the first invalid field
func (c Config) Validate() error {
	var problem string
	switch {
	case c.Name == "":
		problem = "robot name is required"
	case c.TreeListenDepth < 0:
		problem = fmt.Sprintf("treeListenDepth must not be negative, got %d", c.TreeListenDepth)
	case c.MinTokenLength < 1:
		problem = fmt.Sprintf("minTokenLength must be at least 1, got %d", c.MinTokenLength)
	case c.PruneInterval <= 0:
		problem = fmt.Sprintf("pruneInterval must be positive, got %v", c.PruneInterval)
	case c.DedupWindow < 0:
		problem = fmt.Sprintf("dedupWindow must not be negative, got %v", c.DedupWindow)
	case c.PrivateTopic != "" && c.PrivateTopic == c.GlobalTopic:
		problem = fmt.Sprintf("private and global topic must differ, both are %q", c.PrivateTopic)
	case c.PublishLanes < 0 || c.PublishQueueSize < 0:
		problem = "publish lanes and queue size must not be negative"
	default:
		return nil
	}
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, problem),
		"Driver", "Validate", "check config")
}
