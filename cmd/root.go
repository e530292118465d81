package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warroom",
	Short: "legal case file intake tool",
	Example: `warroom case create -t <title>
warroom ingest -c <case-id> -f <file>
warroom list -c <case-id>
warroom get -d <doc-id>
warroom manifest -c <case-id>
warroom search -c <case-id> -q <query>
warroom retry -d <doc-id>
warroom delete -d <doc-id>
warroom reconcile -c <case-id>`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dbCmd)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
