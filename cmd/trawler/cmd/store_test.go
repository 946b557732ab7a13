package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oneconcern/trawler/pkg/config"
	"github.com/oneconcern/trawler/pkg/dlogger"
	"github.com/oneconcern/trawler/pkg/errors"
)

func TestNewStore(t *testing.T) {
	t.Run("localfs driver", func(t *testing.T) {
		conf := config.Default()
		conf.Storage.Driver = config.DriverLocalFS
		conf.Storage.Path = t.TempDir()

		store, err := newStore(conf, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, store.Close())
	})

	t.Run("badger driver", func(t *testing.T) {
		conf := config.Default()
		conf.Storage.Path = filepath.Join(t.TempDir(), "runtime")

		store, err := newStore(conf, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, store.Close())
	})

	t.Run("debug level instruments the store", func(t *testing.T) {
		conf := config.Default()
		conf.Storage.Driver = config.DriverLocalFS
		conf.Storage.Path = t.TempDir()
		conf.LogLevel = dlogger.LogLevelDebug

		store, err := newStore(conf, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, store.Close())
	})

	t.Run("unknown driver", func(t *testing.T) {
		conf := config.Default()
		conf.Storage.Driver = "etcd"

		_, err := newStore(conf, zap.NewNop())
		require.Error(t, err)
		require.True(t, errors.Is(err, config.ErrInvalidConfig))
	})
}
