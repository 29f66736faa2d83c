package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HistoryOptions)(nil)

// HistoryOptions configures the optional feed outcome history database.
type HistoryOptions struct {
	// Path of the SQLite database. Empty disables the history.
	Path string `json:"path" mapstructure:"path"`

	// Retention is how long recorded outcomes are kept.
	Retention time.Duration `json:"retention" mapstructure:"retention"`
}

// NewHistoryOptions creates a HistoryOptions with the history disabled.
func NewHistoryOptions() *HistoryOptions {
	return &HistoryOptions{
		Retention: 24 * time.Hour,
	}
}

// Validate rejects a non-positive retention when the history is enabled.
func (o *HistoryOptions) Validate() []error {
	if o == nil || o.Path == "" {
		return nil
	}
	if o.Retention <= 0 {
		return []error{errors.New("--history.retention must be positive")}
	}
	return nil
}

// AddFlags adds flags for HistoryOptions to the specified FlagSet.
func (o *HistoryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, "history.path", o.Path, "SQLite file recording every feed outcome. Empty disables the history.")
	fs.DurationVar(&o.Retention, "history.retention", o.Retention, "How long recorded feed outcomes are kept.")
}

// Enabled reports whether the history database should be opened.
func (o *HistoryOptions) Enabled() bool {
	return o.Path != ""
}
