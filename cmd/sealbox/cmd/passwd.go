package cmd

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/jmcleod/sealbox/internal/util"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the password and re-encrypt every document",
	Long: `Passwd verifies the current password, then re-encrypts all documents under
a key derived from the new one. The passwords are read from SEALBOX_PASSWORD
and SEALBOX_NEW_PASSWORD when set.`,
	Args: cobra.NoArgs,
	RunE: runPasswd,
}

func init() {
	rootCmd.AddCommand(passwdCmd)
	passwdCmd.Flags().String(keyKDFProfile, "", "Argon2id profile for the new password")
}

func runPasswd(cmd *cobra.Command, _ []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Close()

	old, err := readPassword(envPassword, "Current password: ", false)
	if err != nil {
		return err
	}
	defer util.WipeBytes(old)
	// Login wipes its argument.
	if err := c.Login(bytes.Clone(old)); err != nil {
		return err
	}
	defer c.Logout()

	next, err := readPassword(envNewPassword, "New password: ", true)
	if err != nil {
		return err
	}
	if err := checkNewPassword(next); err != nil {
		util.WipeBytes(next)
		return err
	}
	if err := c.ChangePassword(bytes.Clone(old), next); err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Password changed; documents re-encrypted")
	return nil
}
