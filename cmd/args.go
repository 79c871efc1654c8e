package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmsudo/common"
)

func newArgsCmd() *cobra.Command {
	var (
		configPath   string
		withPassword bool
	)
	c := &cobra.Command{
		Use:   "args",
		Short: "Print the command line an attempt would start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, 0)
			if err != nil {
				return err
			}
			var secret []byte
			if withPassword {
				// only the length matters to the builder
				secret = []byte{0}
			}
			line := argumentBuilder(cfg).CommandLine(secret)
			if len(line) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "elevation is not supported on this platform")
				return &exitError{code: common.ExitUnsupported}
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(line, " "))
			return nil
		},
	}
	c.Flags().StringVarP(&configPath, "config", "f", "", "Path to an Elevation config file")
	c.Flags().BoolVar(&withPassword, "with-password", false, "Show the form used when a password is supplied")
	return c
}
