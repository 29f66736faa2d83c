package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/mizuna-io/mizuna/cmd/mzn-remote/app/options"
	"github.com/mizuna-io/mizuna/pkg/app"
	"github.com/mizuna-io/mizuna/pkg/log"
)

const (
	commandName = "mzn-remote"
	commandDesc = `mzn-remote connects to a Mizuna robot over its HTTP API.

It polls temperature, uptime and performance telemetry on independent
cadences, forwards motion and speed commands, runs the chat session and
tracks the camera stream. Video, telemetry and chat connectivity are
reported as three separate indicators.

State is served on a local HTTP status surface with a websocket watch
stream, and can be mirrored to an MQTT broker.`
)

func NewApp() *app.App {
	opts := options.NewRemoteOptions()
	application := app.NewApp(
		commandName,
		"Remote control and telemetry client for a Mizuna robot",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithWatchConfig(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.RemoteOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer func() { _ = log.Sync() }()

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		remote, err := cfg.NewRemote()
		if err != nil {
			return fmt.Errorf("failed to create remote client: %w", err)
		}

		return remote.Run(ctx)
	}
}
