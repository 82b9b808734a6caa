package cnt

import (
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/cntfs/pkg/protocol"
)

// DefaultPort is the TCP port clients connect to when none is configured.
// The config layer fills it in; a zero Config.Port binds a free port.
const DefaultPort = 61324

// minFrameSize leaves room for the largest fixed-shape control message.
const minFrameSize = 256

// TimeoutsConfig bounds how long a session may block on its peer. Zero
// disables a timeout.
type TimeoutsConfig struct {
	// Read bounds reading one control frame, a raw payload, or a client ack
	// in the middle of an exchange.
	Read time.Duration `mapstructure:"read" validate:"min=0"`

	// Write bounds writing one response or raw payload.
	Write time.Duration `mapstructure:"write" validate:"min=0"`

	// Idle bounds the wait for the next request, including the first
	// connect.
	Idle time.Duration `mapstructure:"idle" validate:"min=0"`
}

// Config holds the cnt server configuration.
//
// Default values (applied by New if zero):
//   - FrameSize: 1024
//   - ShutdownTimeout: 30s
type Config struct {
	BindAddress string `mapstructure:"bind_address"`

	// Port is the TCP port to listen on. 0 picks a free one; read it back
	// with GetListenerAddr.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// FrameSize is the fixed size of every control frame. Both peers must
	// agree on it.
	FrameSize int `mapstructure:"frame_size" validate:"min=0"`

	// MaxConnections limits concurrent sessions. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	Timeouts TimeoutsConfig `mapstructure:"timeouts"`

	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.FrameSize == 0 {
		c.FrameSize = protocol.DefaultFrameSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.FrameSize < minFrameSize {
		errs = append(errs, fmt.Errorf("frame size %d is below the minimum of %d", c.FrameSize, minFrameSize))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("invalid max connections %d", c.MaxConnections))
	}
	if c.Timeouts.Read < 0 || c.Timeouts.Write < 0 || c.Timeouts.Idle < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	return errors.Join(errs...)
}
