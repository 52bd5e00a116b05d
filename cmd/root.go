// Package cmd assembles the subsecond CLI tree, the same
// cobra-root-plus-viper-config shape cucaracha's own cmd/root.go used
// for its toy-CPU toolchain entry point, generalized here to front the
// build/apply/serve/watch workflow described in SPEC_FULL.md.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/subsecond-dev/subsecond/cmd/tools"
	"github.com/subsecond-dev/subsecond/pkg/config"
)

var cfgFile string

// RootCmd is the base command when subsecond is invoked without a
// subcommand.
var RootCmd = &cobra.Command{
	Use:   "subsecond",
	Short: "Hot-patch compiled native and Wasm functions in a running process",
	Long: `subsecond builds, ships, and applies live code patches to a running
process without restarting it: diff two builds of the same program,
link only the changed functions into a small loadable artifact, and
retarget the running process's indirection table once every in-flight
call has unwound to a safe point.`,
}

// Execute runs the root command. Called once from main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(tools.ToolsCmd, buildCmd, applyCmd, serveCmd, watchCmd)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.subsecond.yaml)")
	cobra.OnInitialize(initConfig)
}

var activeConfig config.Config

// initConfig reads in config file and environment variables if set, the
// same file-then-env layering cucaracha's own initConfig used, here
// delegated to pkg/config.Load and an injectable *viper.Viper instead of
// viper's package-level globals.
func initConfig() {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".subsecond")
	}

	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading config:", err)
		os.Exit(1)
	}
	activeConfig = cfg

	if v.ConfigFileUsed() != "" {
		fmt.Fprintln(os.Stderr, "using config file:", v.ConfigFileUsed())
	}
}
