package cli

import (
	"fmt"
	"os"

	"github.com/clinicalgenomics/cellophane/pkg/config"
)

// loadConfig reads the optional schema and mapping files and returns a
// validated *config.Config. Either path may be "" (no mapping means an
// empty, still-valid configuration; no schema means the mapping is parsed
// but not validated).
func loadConfig(schemaFile, configFile string) (*config.Config, error) {
	var mapping, schema []byte
	var err error

	if configFile != "" {
		mapping, err = os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	if schemaFile != "" {
		schema, err = os.ReadFile(schemaFile)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", schemaFile, err)
		}
	}

	return config.Load(schema, mapping)
}
