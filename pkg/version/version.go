package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

const Name = "hookguard"

// Create a new version command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(Version())
		},
	}
	return cmd
}

// Return the formatted version information
func Version() string {
	version := "devel"
	commit := "unknown"

	buildinfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildinfo.Main.Version != "" && buildinfo.Main.Version != "(devel)" {
			version = buildinfo.Main.Version
		}
		for _, setting := range buildinfo.Settings {
			if setting.Key == "vcs.revision" {
				commit = setting.Value
				break
			}
		}
	}

	result := Name + ":\n"
	result += fmt.Sprintf("    Version: %s\n", version)
	result += fmt.Sprintf("    Commit:  %s\n", commit)
	result += fmt.Sprintf("    Go:      %s\n", runtime.Version())
	return result
}
