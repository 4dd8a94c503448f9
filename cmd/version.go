package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/subquery/query-subgraph/internal/build"
)

type versionInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// NewVersionCommand returns the command to get the query service version
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the query-subgraph version",
		Long:  "Return the query-subgraph version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringP("output", "o", "text", "output format, one of 'text' or 'yaml'")

	return cmd
}

func version(cmd *cobra.Command, _ []string) error {
	info := versionInfo{
		Name:    build.ProjectName,
		Version: build.Version,
		Commit:  build.Commit,
		Date:    build.Date,
	}

	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "text":
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s Version %s Date %s commit id %s\n", info.Name, info.Version, info.Date, info.Commit)
		return err
	case "yaml":
		out, err := yaml.Marshal(info)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}
