package cmd

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/trawler/pkg/dlogger"
	"github.com/oneconcern/trawler/pkg/errors"
	storagestatus "github.com/oneconcern/trawler/pkg/storage/status"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the raw value stored under a key",
	Long: `Prints the JSON value stored under a runtime storage key. Handy to
inspect cursors, records and cycle markers, e.g.

  % trawler get runtime_storage_update_time
  % trawler get module_groups
  % trawler get record:1f8ddb9c...`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger, err := dlogger.GetLogger(cfg.LogLevel)
		if err != nil {
			wrapFatalln("initialize logging", err)
			return
		}
		store, err := newStore(cfg, logger)
		if err != nil {
			wrapFatalln("open runtime storage", err)
			return
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("closing runtime storage", zap.Error(cerr))
			}
		}()

		var value interface{}
		if err := store.GetByKey(context.Background(), args[0], &value); err != nil {
			if errors.Is(err, storagestatus.ErrNotFound) {
				wrapFatalWithCodef(2, "key %q not found", args[0])
				return
			}
			wrapFatalln("read key", err)
			return
		}
		raw, err := jsoniter.MarshalIndent(value, "", "  ")
		if err != nil {
			wrapFatalln("encode value", err)
			return
		}
		fmt.Println(string(raw))
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
