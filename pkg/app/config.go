package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mizuna-io/mizuna/pkg/log"
)

const (
	configFlagName = "config"

	// EnvPrefix prefixes every environment override, e.g. MIZUNA_ROBOT_ADDR.
	EnvPrefix = "MIZUNA"

	logLevelKey = "log.level"
)

func addConfigFlag(fs *pflag.FlagSet, basename string, target *string) {
	fs.StringVarP(target, configFlagName, "c", "",
		fmt.Sprintf("Read configuration from the specified file. Searched as %s.yaml in ., $HOME/.mizuna and /etc/mizuna when unset.", basename))
}

// loadConfig binds fs to viper, reads the config file and enables
// environment overrides. Precedence: flag, env, file, default.
func (a *App) loadConfig(fs *pflag.FlagSet) error {
	v := a.viper

	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("$HOME", ".mizuna"))
		v.AddConfigPath("/etc/mizuna")
		v.SetConfigName(a.name)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read configuration file %q: %w", a.configFile, err)
	}

	if a.watchConfig {
		v.OnConfigChange(func(e fsnotify.Event) {
			a.onConfigChange(e)
		})
		v.WatchConfig()
	}
	return nil
}

// onConfigChange applies the log level from the changed file. Every other
// option takes effect on restart.
func (a *App) onConfigChange(e fsnotify.Event) {
	log.Info("Configuration file changed", "file", e.Name, "op", e.Op.String())

	lvl := a.viper.GetString(logLevelKey)
	if lvl == "" || lvl == log.Level() {
		return
	}
	if err := log.SetLevel(lvl); err != nil {
		log.Warn("Ignoring invalid log level from configuration file", "level", lvl, "error", err)
		return
	}
	log.Info("Log level changed", "level", lvl)
}
