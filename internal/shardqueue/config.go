package shardqueue

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config groups all tunables. Values are taken from environment variables with
// the prefix "SQ_". Example: SQ_SHARDS=8 SQ_QUEUE_SIZE=256 .
type Config struct {
	Shards         int           `envconfig:"SHARDS"          default:"4"`
	QueueSize      int           `envconfig:"QUEUE_SIZE"      default:"128"`
	EnqueueTimeout time.Duration `envconfig:"ENQUEUE_TIMEOUT" default:"100ms"`

	MaxAttempts int           `envconfig:"MAX_ATTEMPTS"   default:"8"`
	BaseBackoff time.Duration `envconfig:"BASE_BACKOFF"   default:"100ms"`
	MaxInterval time.Duration `envconfig:"MAX_INTERVAL"   default:"20s"`

	// Name labels this executor's metrics, e.g. "remote" or "trigger".
	Name string `envconfig:"-"`

	// ErrorHandler is called synchronously after a Job gives up with a non-nil
	// error. Leave nil if you do not care.
	ErrorHandler func(error) `envconfig:"-"`

	// Irrecoverable reports errors that must not be retried. Errors wrapped
	// with Permanent are always irrecoverable.
	Irrecoverable func(error) bool `envconfig:"-"`

	Logger zerolog.Logger `envconfig:"-"`
}

// LoadConfig populates Config from environment variables (prefix SQ_).
func LoadConfig() (Config, error) {
	var c Config
	c.Logger = zerolog.Nop()
	return c, envconfig.Process("SQ", &c)
}
