package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinicalgenomics/cellophane/pkg/console"
)

// versionInfo is set by main from build-time ldflags, mirroring the
// teacher's cli.SetVersionInfo pattern.
var versionInfo = "dev"

// SetVersionInfo records the build version shown by NewVersionCommand.
func SetVersionInfo(v string) { versionInfo = v }

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(console.FormatInfoMessage(fmt.Sprintf("cellophane version %s", versionInfo)))
		},
	}
}
