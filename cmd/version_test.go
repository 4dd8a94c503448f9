package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/subquery/query-subgraph/internal/build"
)

func runVersion(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd := NewRootCommand()
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetArgs(append([]string{"version"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runVersion(t)
	require.NoError(t, err)
	require.Contains(t, out, "query-subgraph Version "+build.Version)
	require.Contains(t, out, build.Commit)
}

func TestVersionCommandYAML(t *testing.T) {
	out, err := runVersion(t, "--output", "yaml")
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	require.Equal(t, versionInfo{
		Name:    build.ProjectName,
		Version: build.Version,
		Commit:  build.Commit,
		Date:    build.Date,
	}, info)
}

func TestVersionCommandRejectsInput(t *testing.T) {
	_, err := runVersion(t, "extra")
	require.Error(t, err)

	_, err = runVersion(t, "-o", "xml")
	require.ErrorContains(t, err, "unknown output format")
}
