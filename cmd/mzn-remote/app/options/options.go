package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/mizuna-io/mizuna/internal/remote"
	"github.com/mizuna-io/mizuna/pkg/app"
	"github.com/mizuna-io/mizuna/pkg/log"
	"github.com/mizuna-io/mizuna/pkg/options"
)

type RemoteOptions struct {
	RobotOptions   *options.RobotOptions   `json:"robot" mapstructure:"robot"`
	PollOptions    *options.PollOptions    `json:"poll" mapstructure:"poll"`
	ChatOptions    *options.ChatOptions    `json:"chat" mapstructure:"chat"`
	StreamOptions  *options.StreamOptions  `json:"stream" mapstructure:"stream"`
	HistoryOptions *options.HistoryOptions `json:"history" mapstructure:"history"`
	HttpOptions    *options.HttpOptions    `json:"http" mapstructure:"http"`
	GrpcOptions    *options.GrpcOptions    `json:"grpc" mapstructure:"grpc"`
	MqttOptions    *options.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	S3Options      *options.S3Options      `json:"s3" mapstructure:"s3"`
	Log            *log.Options            `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*RemoteOptions)(nil)

func NewRemoteOptions() *RemoteOptions {
	o := &RemoteOptions{
		RobotOptions:   options.NewRobotOptions(),
		PollOptions:    options.NewPollOptions(),
		ChatOptions:    options.NewChatOptions(),
		StreamOptions:  options.NewStreamOptions(),
		HistoryOptions: options.NewHistoryOptions(),
		HttpOptions:    options.NewHttpOptions(),
		GrpcOptions:    options.NewGrpcOptions(),
		MqttOptions:    options.NewMqttOptions(),
		S3Options:      options.NewS3Options(),
		Log:            log.NewOptions(),
	}
	o.Log.Name = "mzn-remote"

	return o
}

func (o *RemoteOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.RobotOptions.AddFlags(fss.FlagSet("robot"))
	o.PollOptions.AddFlags(fss.FlagSet("poll"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.StreamOptions.AddFlags(fss.FlagSet("stream"))
	o.HistoryOptions.AddFlags(fss.FlagSet("history"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete derives the stream URL from the robot address when only the
// latter was changed.
func (o *RemoteOptions) Complete() error {
	def := options.NewRobotOptions()
	if o.StreamOptions.URL == options.NewStreamOptions().URL && o.RobotOptions.Addr != def.Addr {
		o.StreamOptions.URL = o.RobotOptions.Addr + "/stream.mjpg"
	}
	return nil
}

func (o *RemoteOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.RobotOptions.Validate()...)
	errs = append(errs, o.PollOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.StreamOptions.Validate()...)
	errs = append(errs, o.HistoryOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	if o.HttpOptions.Enabled() && o.GrpcOptions.Enabled() && o.HttpOptions.Addr == o.GrpcOptions.Addr {
		errs = append(errs, fmt.Errorf("--http.addr and --grpc.addr must differ, both are %q", o.HttpOptions.Addr))
	}
	return utilerrors.NewAggregate(errs)
}

func (o *RemoteOptions) Config() (*remote.Config, error) {
	return &remote.Config{
		RobotOptions:   o.RobotOptions,
		PollOptions:    o.PollOptions,
		ChatOptions:    o.ChatOptions,
		StreamOptions:  o.StreamOptions,
		HistoryOptions: o.HistoryOptions,
		HttpOptions:    o.HttpOptions,
		GrpcOptions:    o.GrpcOptions,
		MqttOptions:    o.MqttOptions,
		S3Options:      o.S3Options,
	}, nil
}
