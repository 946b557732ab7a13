// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/oneconcern/trawler/pkg/config"
	"github.com/oneconcern/trawler/pkg/dlogger"
	"github.com/oneconcern/trawler/pkg/engine"
	"github.com/oneconcern/trawler/pkg/metrics"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/source"
	"github.com/oneconcern/trawler/pkg/source/gerrit"
	"github.com/oneconcern/trawler/pkg/source/git"
	"github.com/oneconcern/trawler/pkg/source/mailman"
	"github.com/oneconcern/trawler/pkg/source/members"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var updateParams struct {
	defaultDataURI string
	correctionsURI string
	programListURI string
	storagePath    string
	sourcesRoot    string
	metricsURL     string
	concurrency    int
	force          bool
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run one full update cycle",
	Long: `Runs one full update cycle: loads the default data document, harvests
every listed repo, mailing list and member roster, applies corrections and
rebuilds the module group taxonomy.

Cycles are incremental. The first run reads complete histories and may take
a long while; later runs resume from the cursors the previous cycle left.`,
	Run: func(cmd *cobra.Command, args []string) {
		conf := overrideConfig(cfg)
		if err := conf.Validate(); err != nil {
			wrapFatalln("configuration", err)
			return
		}
		logger, err := dlogger.GetLogger(conf.LogLevel)
		if err != nil {
			wrapFatalln("initialize logging", err)
			return
		}

		store, err := newStore(conf, logger)
		if err != nil {
			wrapFatalln("open runtime storage", err)
			return
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("closing runtime storage", zap.Error(cerr))
			}
		}()

		ctx := context.Background()
		updatePids(ctx, store, conf.WatchProcesses, logger)

		var publisher *metrics.Publisher
		if conf.Metrics.URL != "" {
			backend, berr := metrics.NewStore(
				metrics.WithURL(conf.Metrics.URL),
				metrics.WithDatabase(conf.Metrics.Database),
			)
			if berr != nil {
				wrapFatalln("metrics backend", berr)
				return
			}
			defer func() {
				_ = backend.Close()
			}()
			publisher = metrics.NewPublisher(backend)
		}

		eng := engine.New(store, newResolver(conf, logger),
			engine.WithLogger(logger),
			engine.WithConcurrency(conf.Concurrency),
			engine.WithForce(conf.ForceUpdate),
			engine.WithDefaultDataURI(conf.DefaultDataURI),
			engine.WithCorrectionsURI(conf.CorrectionsURI),
			engine.WithProgramListURI(conf.ProgramListURI),
			engine.WithMetrics(publisher),
		)

		stats, err := eng.Update(ctx)
		if err != nil {
			wrapFatalln(fmt.Sprintf("update cycle %s finished with errors", stats.Run), err)
			return
		}
		infoLogger.Printf("update cycle %s done in %s: %d records written, %d corrections applied",
			stats.Run, stats.Elapsed().Round(time.Millisecond), stats.Written(), stats.CorrectionsApplied.Load())
	},
}

// overrideConfig lays command line flags over the loaded configuration.
func overrideConfig(conf config.Config) config.Config {
	if updateParams.defaultDataURI != "" {
		conf.DefaultDataURI = updateParams.defaultDataURI
	}
	if updateParams.correctionsURI != "" {
		conf.CorrectionsURI = updateParams.correctionsURI
	}
	if updateParams.programListURI != "" {
		conf.ProgramListURI = updateParams.programListURI
	}
	if updateParams.storagePath != "" {
		conf.Storage.Path = updateParams.storagePath
	}
	if updateParams.sourcesRoot != "" {
		conf.Sources.Root = updateParams.sourcesRoot
	}
	if updateParams.metricsURL != "" {
		conf.Metrics.URL = updateParams.metricsURL
	}
	if updateParams.concurrency > 0 {
		conf.Concurrency = updateParams.concurrency
	}
	if updateParams.force {
		conf.ForceUpdate = true
	}
	return conf
}

// newResolver wires the configured source adapters. Reviews are only
// registered when a gerrit host is configured.
func newResolver(conf config.Config, logger *zap.Logger) *source.Resolver {
	resolver := source.NewResolver().
		RegisterVCS("git", func(repo model.Repo) (source.VCS, error) {
			return git.New(repo,
				git.WithSourcesRoot(conf.Sources.Root),
				git.WithStats(conf.Sources.CollectStats),
				git.WithLogger(logger),
			), nil
		}).
		RegisterMail(func(uri string) (source.MailList, error) {
			return mailman.New(uri, mailman.WithLogger(logger)), nil
		}).
		RegisterMember(func(uri string) (source.MemberList, error) {
			return members.New(uri,
				members.WithLookAhead(conf.Members.LookAhead),
				members.WithRescanPeriod(time.Duration(conf.Members.RescanDays)*24*time.Hour),
				members.WithLogger(logger),
			), nil
		})
	if conf.Review.Host != "" {
		resolver.RegisterRCS(func(repo model.Repo) (source.RCS, error) {
			return gerrit.New(repo,
				gerrit.WithHost(conf.Review.Host),
				gerrit.WithPort(conf.Review.Port),
				gerrit.WithUsername(conf.Review.Username),
				gerrit.WithKeyFile(conf.Review.KeyFile),
				gerrit.WithLogger(logger),
			), nil
		})
	}
	return resolver
}

func init() {
	updateCmd.Flags().StringVar(&updateParams.defaultDataURI, "default-data", "",
		"URI of the default data document, overrides the configured one")
	updateCmd.Flags().StringVar(&updateParams.correctionsURI, "corrections", "",
		"URI of the corrections document, overrides the configured one")
	updateCmd.Flags().StringVar(&updateParams.programListURI, "program-list", "",
		"URI of the official program list, overrides the configured one")
	updateCmd.Flags().StringVar(&updateParams.storagePath, "storage-path", "",
		"Location of the runtime storage, overrides the configured one")
	updateCmd.Flags().StringVar(&updateParams.sourcesRoot, "sources-root", "",
		"Directory holding repo mirrors, overrides the configured one")
	updateCmd.Flags().StringVar(&updateParams.metricsURL, "metrics-url", "",
		"URL of the influxdb metrics backend, overrides the configured one")
	updateCmd.Flags().IntVar(&updateParams.concurrency, "concurrency", 0,
		"Number of repos harvested in parallel, overrides the configured one")
	updateCmd.Flags().BoolVar(&updateParams.force, "force", false,
		"Reprocess the default data document even when it did not change")
	rootCmd.AddCommand(updateCmd)
}
