// Copyright 2025 The Mizuna Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures the process logger. The level can be changed at
// runtime through SetLevel; everything else is fixed by Init.
type Options struct {
	Name          string `json:"name,omitempty" mapstructure:"name"`
	Level         string `json:"level,omitempty" mapstructure:"level"`
	Format        string `json:"format,omitempty" mapstructure:"format"`
	EnableColor   bool   `json:"enable-color,omitempty" mapstructure:"enable-color"`
	DisableCaller bool   `json:"disable-caller,omitempty" mapstructure:"disable-caller"`
	// CallerSkip is tuned for the package-level functions and named loggers.
	CallerSkip  int      `json:"caller-skip,omitempty" mapstructure:"caller-skip"`
	OutputPaths []string `json:"output-paths,omitempty" mapstructure:"output-paths"`
}

// NewOptions returns console logging at info level on stdout.
func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      FormatConsole,
		EnableColor: true,
		CallerSkip:  2,
		OutputPaths: []string{"stdout"},
	}
}

func (o *Options) Validate() []error {
	var errs []error
	if _, err := parseLevel(o.Level); err != nil {
		errs = append(errs, fmt.Errorf("--log.level: %w", err))
	}
	switch o.Format {
	case FormatConsole, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("--log.format: want %s or %s, got %q", FormatConsole, FormatJSON, o.Format))
	}
	if o.CallerSkip < 0 {
		errs = append(errs, fmt.Errorf("--log.caller-skip: must not be negative, got %d", o.CallerSkip))
	}
	for _, p := range o.OutputPaths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("--log.output-paths: empty path"))
			break
		}
	}
	return errs
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level,
		"Minimum level: debug, info, warn or error. A config file change applies it without restart.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Output encoding: console or json.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths,
		"Where to write logs: stdout, stderr or file paths.")
	fs.StringVar(&o.Name, "log.name", o.Name, "Logger name prefixed to every entry.")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Colorize levels in console output.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the file:line caller field.")
	fs.IntVar(&o.CallerSkip, "log.caller-skip", o.CallerSkip, "Extra stack frames to skip when reporting the caller.")
}
