package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rockbears/log"
	"github.com/spf13/cobra"

	"github.com/fedora-infra/packagedb-sub000/engine/api"
	"github.com/fedora-infra/packagedb-sub000/engine/api/database"
	"github.com/fedora-infra/packagedb-sub000/sdk"
	pkgdblog "github.com/fedora-infra/packagedb-sub000/sdk/log"
)

var cfgFile string

var mainCmd = &cobra.Command{
	Use:   "engine",
	Short: "pkgdb engine",
	Long:  "The package database acl engine: ownership, retirement and acl state transitions over the package listings.",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pkgdb engine",
	Run: func(cmd *cobra.Command, args []string) {
		conf := configImport(cfgFile)
		pkgdblog.Initialize(&conf.Log)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-c
			signal.Stop(c)
			cancel()
		}()

		a := api.New()
		if err := a.Init(ctx, conf.API); err != nil {
			sdk.Exit("unable to initialize api: %v", err)
		}
		if err := a.Serve(ctx); err != nil {
			sdk.Exit("api error: %v", err)
		}
		log.Info(ctx, "engine stopped")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the engine configuration",
}

var configNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Print a new default configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		btes, err := configMarshal(configNew())
		if err != nil {
			sdk.Exit("unable to marshal configuration: %v", err)
		}
		fmt.Println(string(btes))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the engine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(sdk.VERSION)
	},
}

func init() {
	startCmd.Flags().StringVar(&cfgFile, "config", "", "configuration file")
	configCmd.AddCommand(configNewCmd)
	mainCmd.AddCommand(startCmd, configCmd, versionCmd, database.DBCmd)
}

func main() {
	if err := mainCmd.Execute(); err != nil {
		sdk.Exit("%v", err)
	}
}
