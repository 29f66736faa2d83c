package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ChatOptions)(nil)

// ChatOptions configures the conversational channel.
type ChatOptions struct {
	// Timeout bounds a single /ask or /clear_context exchange. Replies are
	// generated on the robot, so this is longer than the telemetry timeout.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewChatOptions creates a ChatOptions with default values.
func NewChatOptions() *ChatOptions {
	return &ChatOptions{
		Timeout: 60 * time.Second,
	}
}

// Validate rejects a non-positive timeout.
func (o *ChatOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Timeout <= 0 {
		return []error{errors.New("--chat.timeout must be positive")}
	}
	return nil
}

// AddFlags adds flags for ChatOptions to the specified FlagSet.
func (o *ChatOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Timeout, "chat.timeout", o.Timeout, "Timeout of a single chat exchange with the robot.")
}
