package main

import (
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/magnetlab/magnetlab/internal/logging"
)

// execState tracks which command ran and whether structured logging came up,
// so the fatal path in main.go can pick the right output format.
var execState atomic.Pointer[commandExecution]

type commandExecution struct {
	commandPath       string
	usesStructuredLog bool
}

func loggingBootstrapped() bool {
	st := execState.Load()
	return st != nil && st.usesStructuredLog
}

func currentCommandPath() string {
	if st := execState.Load(); st != nil {
		return st.commandPath
	}
	return "magnetlab"
}

var rootCmd = &cobra.Command{
	Use:           "magnetlab",
	Short:         "MagnetLab captures funnel leads and syncs them to email marketing tools.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		st := &commandExecution{commandPath: cmd.CommandPath()}
		if _, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: cmd.Name()}); err != nil {
			execState.Store(st)
			return err
		}
		st.usesStructuredLog = true
		execState.Store(st)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, syncCmd, migrateCmd)
}
