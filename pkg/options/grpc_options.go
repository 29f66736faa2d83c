package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*GrpcOptions)(nil)

// GrpcOptions configures the plaintext gRPC health endpoint.
type GrpcOptions struct {
	Network string `json:"network" mapstructure:"network"`

	// Addr is the listen address. Empty disables the gRPC server.
	Addr string `json:"addr" mapstructure:"addr"`
}

// NewGrpcOptions creates a GrpcOptions with the server disabled.
func NewGrpcOptions() *GrpcOptions {
	return &GrpcOptions{
		Network: "tcp",
	}
}

// Validate checks the listen address when the server is enabled.
func (o *GrpcOptions) Validate() []error {
	if o == nil || o.Addr == "" {
		return nil
	}

	var errs []error
	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// AddFlags adds flags for GrpcOptions to the specified FlagSet.
func (o *GrpcOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, "grpc.network", o.Network, "Specify the network for the gRPC health server.")
	fs.StringVar(&o.Addr, "grpc.addr", o.Addr, "gRPC health server bind address and port. Empty disables it.")
}

// Enabled reports whether the gRPC server should be started.
func (o *GrpcOptions) Enabled() bool {
	return o.Addr != ""
}
