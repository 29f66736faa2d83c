package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RobotOptions)(nil)

// RobotOptions describes how to reach the robot's HTTP service.
type RobotOptions struct {
	// ID names the robot in relay topics and archive keys.
	ID string `json:"id" mapstructure:"id"`

	// Addr is the base URL of the telemetry and chat service.
	Addr string `json:"addr" mapstructure:"addr"`

	// CommandAddr is the base URL of the motor controller. Empty means Addr.
	CommandAddr string `json:"command-addr" mapstructure:"command-addr"`

	// Timeout bounds every telemetry and command call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewRobotOptions creates a RobotOptions with default values.
func NewRobotOptions() *RobotOptions {
	return &RobotOptions{
		ID:      "mizuna",
		Addr:    "http://raspberrypi.local:5000",
		Timeout: 5 * time.Second,
	}
}

// Validate checks the robot URLs and timeout.
func (o *RobotOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.ID == "" {
		errs = append(errs, errors.New("--robot.id must not be empty"))
	}
	if err := ValidateURL(o.Addr, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("--robot.addr: %w", err))
	}
	if o.CommandAddr != "" {
		if err := ValidateURL(o.CommandAddr, "http", "https"); err != nil {
			errs = append(errs, fmt.Errorf("--robot.command-addr: %w", err))
		}
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("--robot.timeout must be positive"))
	}

	return errs
}

// AddFlags adds flags for RobotOptions to the specified FlagSet.
func (o *RobotOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ID, "robot.id", o.ID, "Identifier of the robot, used in relay topics and archive keys.")
	fs.StringVar(&o.Addr, "robot.addr", o.Addr, "Base URL of the robot's telemetry and chat service.")
	fs.StringVar(&o.CommandAddr, "robot.command-addr", o.CommandAddr, "Base URL of the robot's motor controller. Defaults to --robot.addr.")
	fs.DurationVar(&o.Timeout, "robot.timeout", o.Timeout, "Timeout applied to each telemetry and command request.")
}

// CommandURL returns the base URL used for movement and speed commands.
func (o *RobotOptions) CommandURL() string {
	if o.CommandAddr != "" {
		return o.CommandAddr
	}
	return o.Addr
}
