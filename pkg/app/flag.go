package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/pflag"
)

const maskedValue = "******"

var sensitiveFlagWords = []string{"password", "secret"}

// printWorkingFlags writes every flag with its effective value. Credentials
// are masked.
func printWorkingFlags(w io.Writer, fs *pflag.FlagSet) {
	table := uitable.New()
	table.Separator = " "
	table.MaxColWidth = 80
	table.AddRow("FLAG", "VALUE")

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		table.AddRow("--"+f.Name, flagValue(f))
	})

	fmt.Fprintln(w, table)
}

func flagValue(f *pflag.Flag) string {
	v := f.Value.String()
	if v == "" {
		return v
	}
	for _, word := range sensitiveFlagWords {
		if strings.Contains(f.Name, word) {
			return maskedValue
		}
	}
	return v
}
