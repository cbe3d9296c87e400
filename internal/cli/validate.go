package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinicalgenomics/cellophane/pkg/console"
	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

// NewValidateCommand builds the "validate" command described in
// SPEC_FULL.md's supplemented-features section: loads the configuration
// and samples manifest, reports errors, and exits without running any
// hooks or runners.
func NewValidateCommand() *cobra.Command {
	var (
		samplesFile string
		configFile  string
		schemaFile  string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and samples manifest without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" || schemaFile != "" {
				if _, err := loadConfig(schemaFile, configFile); err != nil {
					return fmt.Errorf("config: %w", err)
				}
				fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("Configuration is valid"))
			}

			if samplesFile != "" {
				c, err := sample.LoadManifest(samplesFile)
				if err != nil {
					return fmt.Errorf("samples: %w", err)
				}
				fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("Samples manifest is valid (%d samples)", c.Len())))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&samplesFile, "samples", "", "Samples manifest YAML file to validate")
	cmd.Flags().StringVar(&configFile, "config", "", "Configuration mapping YAML/JSON file to validate")
	cmd.Flags().StringVar(&schemaFile, "schema", "", "JSON schema to validate the configuration mapping against")

	return cmd
}
