package cmd

import (
	"github.com/oneconcern/trawler/pkg/config"
	"github.com/oneconcern/trawler/pkg/dlogger"
	"github.com/oneconcern/trawler/pkg/storage"
	"github.com/oneconcern/trawler/pkg/storage/badgerdb"
	"github.com/oneconcern/trawler/pkg/storage/localfs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// newStore opens the runtime storage the configuration points to.
func newStore(conf config.Config, logger *zap.Logger) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch conf.Storage.Driver {
	case config.DriverBadger, "":
		store, err = badgerdb.New(conf.Storage.Path)
	case config.DriverLocalFS:
		store, err = localfs.New(afero.NewBasePathFs(afero.NewOsFs(), conf.Storage.Path))
	default:
		return nil, config.ErrInvalidConfig.WrapMessage("unknown storage driver %q", conf.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}
	if conf.LogLevel == dlogger.LogLevelDebug {
		store = storage.Instrument(logger, store)
	}
	return store, nil
}
