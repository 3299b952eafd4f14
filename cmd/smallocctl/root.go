package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var jsonOut bool

var rootCmd = &cobra.Command{
	Use:     "smallocctl",
	Short:   "Drive and inspect a size-class segregated allocator",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
