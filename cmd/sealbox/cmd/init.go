package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/sealbox/internal/util"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Register a password and create the encrypted documents",
	Long: `Init registers the local account and writes the settings, contacts and
history documents under a key derived from the password. The password is
read from SEALBOX_PASSWORD, a terminal prompt or one line of stdin.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String(keyKDFProfile, "", "Argon2id profile: interactive, moderate, sensitive")
}

func runInit(cmd *cobra.Command, _ []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Close()

	registered, err := c.Registered()
	if err != nil {
		return err
	}
	if registered {
		return errors.New("already initialized; use passwd to change the password")
	}

	pw, err := readPassword(envPassword, "New password: ", true)
	if err != nil {
		return err
	}
	if err := checkNewPassword(pw); err != nil {
		util.WipeBytes(pw)
		return err
	}
	if err := c.Register(pw); err != nil {
		return err
	}
	s, err := c.Settings()
	if err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Initialized %s", c.DataDir())
	fmt.Fprintf(cmd.OutOrStdout(), "  address: %s\n", s.Address)
	return c.Logout()
}
