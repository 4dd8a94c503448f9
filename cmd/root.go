// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with SUBGRAPH, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("SUBGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/query-subgraph", "$HOME/.query-subgraph", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "query-subgraph",
		Short: "A read only HTTP query service over the tables a SubQuery indexer writes",
		Long: `A read only HTTP query service over the tables a SubQuery indexer writes.

Entities are listed with filters, orderings and pagination, read as of any indexed block,
and looked up by id. Indexing progress is served from the indexer's metadata tables.`,
	}
}
