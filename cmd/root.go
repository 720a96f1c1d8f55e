// Package cmd implements the command-line interface for the dispatch
// toolkit. It provides the root command and subcommands for querying,
// geocoding, tracking, and monitoring Dallas police incident data.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cmddatasets "github.com/GodspeedAgent/dpd-dispatch/cmd/datasets"
	cmdgeocode "github.com/GodspeedAgent/dpd-dispatch/cmd/geocode"
	cmdhttpd "github.com/GodspeedAgent/dpd-dispatch/cmd/httpd"
	cmdquery "github.com/GodspeedAgent/dpd-dispatch/cmd/query"
	cmdsnapshot "github.com/GodspeedAgent/dpd-dispatch/cmd/snapshot"
	cmdtrack "github.com/GodspeedAgent/dpd-dispatch/cmd/track"
	cmdwatch "github.com/GodspeedAgent/dpd-dispatch/cmd/watch"
)

// version is stamped into the version command output.
const version = "1.0.0"

// rootCmd represents the root command for the dispatch CLI.
var rootCmd = &cobra.Command{
	Use:   "dpd-dispatch",
	Short: "Query and monitor Dallas police incident data",
	Long: `A toolkit for the Dallas Open Data police datasets: typed incident
queries compiled to SoQL, address geocoding with a persistent cache,
call tracking across the active-calls feeds, and an HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	// Load .env file early so environment variables are available when
	// the config layer reads them.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("dataset", "",
		"dataset preset (police_incidents, active_calls_northeast, active_calls_all)")
	rootCmd.PersistentFlags().String("token", "", "Socrata application token")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dpd-dispatch version %s\n", version)
		},
	})

	rootCmd.AddCommand(cmdquery.Command())
	rootCmd.AddCommand(cmdgeocode.Command())
	rootCmd.AddCommand(cmddatasets.Command())
	rootCmd.AddCommand(cmdtrack.Command())
	rootCmd.AddCommand(cmdsnapshot.Command())
	rootCmd.AddCommand(cmdwatch.Command())
	rootCmd.AddCommand(cmdhttpd.Command())
}
