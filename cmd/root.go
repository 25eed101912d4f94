package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dcov/cmd/kv"
	"github.com/ValentinKolb/dcov/cmd/lock"
	"github.com/ValentinKolb/dcov/cmd/report"
	"github.com/ValentinKolb/dcov/cmd/serve"
	"github.com/ValentinKolb/dcov/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dcov",
		Short: "line coverage aggregation",
		Long: fmt.Sprintf(`dcov (v%s)

Collects line coverage reports from many processes and merges them
into one view per file, stored in a pluggable key-value store.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dcov",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dcov v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(report.ReportCommands)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
