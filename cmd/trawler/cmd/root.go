// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/oneconcern/trawler/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg     config.Config
	cpuProf bool
)

var rootCmd = &cobra.Command{
	Use:   "trawler",
	Short: "Trawler harvests engineering activity into one runtime storage",
	Long: `Trawler incrementally harvests commits, code reviews, mailing list
messages and community member profiles into a single runtime storage,
reconciling re-harvested records instead of duplicating them.

Harvesting is resumable: every source stream is tracked by a cursor and
a new cycle picks up where the previous one left off.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cpuProf {
			f, err := os.Create("cpu.prof")
			if err != nil {
				logFatalln(err)
			}
			_ = pprof.StartCPUProfile(f)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cpuProf {
			pprof.StopCPUProfile()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVar(&cpuProf, "cpuprof", false, "Profile CPU usage of this command")
}

// initConfig reads in the config file and ENV variables if set.
func initConfig() {
	if location := os.Getenv("TRAWLER_CONFIG"); location != "" {
		viper.SetConfigFile(location)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.trawler")
		viper.AddConfigPath("/etc/trawler")
		viper.SetConfigName("trawler")
	}

	viper.AutomaticEnv() // read in environment variables that match
	if err := viper.ReadInConfig(); err == nil {
		infoLogger.Println("Using config file:", viper.ConfigFileUsed())
	}

	var err error
	cfg, err = newConfig()
	if err != nil {
		wrapFatalln("invalid configuration", err)
		return
	}
}

// newConfig lays the file and environment settings over the defaults, so a
// partial config file is enough. Validation is left to the commands that
// need a complete configuration.
func newConfig() (config.Config, error) {
	c := config.Default()
	if err := viper.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
