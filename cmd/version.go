package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/kozaktomas/photo-map/internal/config"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// versionInfo describes the running binary.
type versionInfo struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	Built     string   `json:"built"`
	Go        string   `json:"go"`
	Platform  string   `json:"platform"`
	Providers []string `json:"providers"`
}

func currentVersion() versionInfo {
	return versionInfo{
		Version:   Version,
		Commit:    CommitSHA,
		Built:     BuildDate,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Providers: []string{config.ProviderGemini, config.ProviderOpenAI, config.ProviderOllama},
	}
}

func writeVersion(w io.Writer, info versionInfo, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}
	fmt.Fprintf(w, "photo-map %s\n", info.Version)
	fmt.Fprintf(w, "  Commit:    %s\n", info.Commit)
	fmt.Fprintf(w, "  Built:     %s\n", info.Built)
	fmt.Fprintf(w, "  Go:        %s (%s)\n", info.Go, info.Platform)
	fmt.Fprintf(w, "  Oracles:   %v\n", info.Providers)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), currentVersion(), mustGetBool(cmd, "json"))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}
