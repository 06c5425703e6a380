// Package main provides the chost CLI entrypoint.
package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := a.log.WrapError(root.Execute)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		a.errOut.Block(a.renderer().Error(err))
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chost",
		Short: "Command-line client for the Cohost private API",
		Long: `chost logs in to Cohost and reads your notification feed.

Sessions are kept in a Netscape cookie file (~/.chost/cookies.txt by
default) so later commands do not need your password.

Settings come from ~/.chost/config.yaml and CHOST_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Config file (default ~/.chost/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&a.pretty, "pretty", true, "Pretty print output")

	rootCmd.AddCommand(
		loginCmd(a),
		whoamiCmd(a),
		notificationsCmd(a),
		logoutCmd(a),
	)
	return rootCmd
}
