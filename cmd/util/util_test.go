package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestMustBindPFlag(t *testing.T) {
	t.Cleanup(viper.Reset)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("query-limit", 100, "")
	MustBindPFlag("query.limit", flags.Lookup("query-limit"))

	require.NoError(t, flags.Parse([]string{"--query-limit", "25"}))
	require.Equal(t, 25, viper.GetInt("query.limit"))
}

func TestMustBindPFlagPanicsOnNilFlag(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.Panics(t, func() {
		MustBindPFlag("query.limit", nil)
	})
}

func TestMustBindEnv(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Setenv("DB_HOST", "db.internal")
	MustBindEnv("datastore.host", "DB_HOST")
	require.Equal(t, "db.internal", viper.GetString("datastore.host"))

	require.Panics(t, func() {
		MustBindEnv()
	})
}

func TestPrepareTempConfigFile(t *testing.T) {
	PrepareTempConfigFile(t, "name: app\n")

	data, err := os.ReadFile(filepath.Join(os.Getenv("HOME"), ".query-subgraph", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "name: app\n", string(data))
}
