package main

import (
	"time"

	"github.com/spf13/cobra"
)

// CommandFunc defines the function signature for command execution.
type CommandFunc func(cmd *cobra.Command, args []string) error

// CommandConfig holds configuration for creating standardized commands.
type CommandConfig struct {
	Use     string
	Short   string
	Long    string
	Example string
	Args    cobra.PositionalArgs
	RunFunc CommandFunc
}

// newCommand creates a cobra command that logs its duration and outcome.
func newCommand(a *app, cfg CommandConfig) *cobra.Command {
	args := cfg.Args
	if args == nil {
		args = cobra.NoArgs
	}
	return &cobra.Command{
		Use:     cfg.Use,
		Short:   cfg.Short,
		Long:    cfg.Long,
		Example: cfg.Example,
		Args:    args,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			start := time.Now()
			err := cfg.RunFunc(cmd, cmdArgs)
			a.log.TimedEvent("command", start, map[string]interface{}{"command": cmd.Name()}, err)
			return err
		},
	}
}
