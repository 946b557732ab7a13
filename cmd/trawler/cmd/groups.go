// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/oneconcern/trawler/pkg/dlogger"
	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/model"
	storagestatus "github.com/oneconcern/trawler/pkg/storage/status"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the module group taxonomy",
	Long: `Lists the module groups assembled by the last update cycle, with their
tag, display name and module count.`,
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

		var groups map[string]model.ModuleGroup
		if err := store.GetByKey(context.Background(), model.KeyModuleGroups, &groups); err != nil {
			if errors.Is(err, storagestatus.ErrNotFound) {
				infoLogger.Println("no module groups yet, run an update first")
				return
			}
			wrapFatalln("read module groups", err)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, id := range model.GroupIDs(groups) {
			group := groups[id]
			fmt.Fprintf(w, "%s\t%s\t%s\t%d modules\n",
				id, group.Name, color.HiBlackString(group.Tag), len(group.Modules))
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}
