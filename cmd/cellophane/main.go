package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cellocli "github.com/clinicalgenomics/cellophane/internal/cli"
	"github.com/clinicalgenomics/cellophane/pkg/console"
	"github.com/clinicalgenomics/cellophane/pkg/registry"
	"github.com/clinicalgenomics/cellophane/pkg/runner"
)

// version is set by GoReleaser at build time, mirroring the teacher's
// main.go build-time version variable.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "cellophane",
	Short: "A process-isolated sample-oriented bioinformatics pipeline wrapper",
	Long: `cellophane runs a directory of registered runner/hook modules over a
samples manifest, dispatching each runner's shards to isolated worker
processes and merging their results back into one sample collection.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.SetOut(os.Stderr)
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n", console.FormatInfoMessage("cellophane version {{.Version}}")))

	rootCmd.AddCommand(cellocli.NewRunCommand(os.Executable))
	rootCmd.AddCommand(cellocli.NewValidateCommand())
	rootCmd.AddCommand(cellocli.NewVersionCommand())
}

func main() {
	// Before any cobra parsing: a worker-mode re-exec arrives as
	// argv[1] == runner.WorkerArg (spec.md §4.3/§5 -- each shard runs in
	// its own OS process, and this is how the dispatcher's spawned
	// subprocess gets routed into worker mode instead of the CLI).
	if len(os.Args) > 1 && os.Args[1] == runner.WorkerArg {
		if err := registry.RunWorker(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
			os.Exit(1)
		}
		return
	}

	cellocli.SetVersionInfo(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(1)
	}
}
