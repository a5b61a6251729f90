package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func (a *app) versionCmd() *cobra.Command {
	var short, jsonOutput bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, build information, and Go runtime version.`,
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := a.opts.Build
			w := cmd.OutOrStdout()

			if short {
				fmt.Fprintln(w, b.Version)
				return nil
			}

			if jsonOutput {
				info := map[string]string{
					"version":   b.Version,
					"commit":    orUnknown(b.Commit),
					"built":     orUnknown(b.BuildTime),
					"goVersion": runtime.Version(),
					"platform":  runtime.GOOS + "/" + runtime.GOARCH,
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(w, "blogportal version %s\n", b.Version)
			fmt.Fprintf(w, "  commit:     %s\n", orUnknown(b.Commit))
			fmt.Fprintf(w, "  built:      %s\n", orUnknown(b.BuildTime))
			fmt.Fprintf(w, "  go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print version string only")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
