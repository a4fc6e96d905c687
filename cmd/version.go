package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the canonical release string. The default here is the fallback
// for `go run` and untagged builds. Production builds overwrite this via:
//
//	go build -ldflags "-X github.com/derickschaefer/periodic/cmd.Version=v0.2.0"
//
// Set once in the Makefile VERSION variable; never edit this string directly
// for a release.
var Version = "v0.1.0"

// versionInfo is the structured payload for --format json output.
// All fields are exported so encoding/json picks them up.
type versionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	BuildTime string `json:"build_time,omitempty"`
}

// BuildTime is optionally injected at build time alongside Version:
//
//	-ldflags "-X github.com/derickschaefer/periodic/cmd.Version=v0.2.0
//	           -X github.com/derickschaefer/periodic/cmd.BuildTime=2026-02-16T12:00:00Z"
var BuildTime = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the periodic version and build information",
	Long: `Print the periodic version string and build metadata.

Default output is plain text, suitable for shell scripts and pipelines.
Use --format json for structured output.

Examples:
  periodic version
  periodic version --format json
  periodic version --format json | jq .version`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := globalFlags.Format
		if format == "" {
			format = "text"
		}

		info := versionInfo{
			Version:   Version,
			GoVersion: runtime.Version(),
			GOOS:      runtime.GOOS,
			GOARCH:    runtime.GOARCH,
			BuildTime: BuildTime,
		}

		switch format {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)

		case "jsonl":
			// Single object on one line for JSONL pipelines.
			b, err := json.Marshal(info)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return nil

		default:
			// Plain text, one value per line.
			fmt.Fprintf(cmd.OutOrStdout(), "periodic %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "go       %s\n", info.GoVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "os       %s/%s\n", info.GOOS, info.GOARCH)
			if info.BuildTime != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "built    %s\n", info.BuildTime)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
