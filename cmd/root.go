package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmsudo/common"
)

// exitError ends the process with code. err, when set, is printed first.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           common.AppName,
		Short:         "Check sudo credentials by running a harmless probe under sudo",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.AddCommand(newAuthenticateCmd(), newArgsCmd(), newVersionCmd())
	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(newRootCmd(), os.Args[1:])
}

func execute(rootCmd *cobra.Command, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return common.ExitAuthenticated
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	return common.ExitError
}
