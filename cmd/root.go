package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/feval/cmd/eval"
	"github.com/ValentinKolb/feval/cmd/keys"
	"github.com/ValentinKolb/feval/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "feval",
		Short: "remote expression evaluation over an encrypted message transport",
		Long: fmt.Sprintf(`feval (v%s)

An evaluation server and client talking over an encrypted, checksummed and
optionally compressed message transport on top of TCP, unix sockets or KCP.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of feval",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("feval v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(eval.EvalCmd)
	RootCmd.AddCommand(keys.KeyCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
