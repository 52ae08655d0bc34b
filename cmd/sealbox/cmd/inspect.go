package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmcleod/sealbox/core"
	"github.com/jmcleod/sealbox/docstore"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [file...]",
	Short: "Print document envelope headers without decrypting",
	Long: `Inspect prints the clear header of each document envelope: format version,
cipher, nonce size, document label, generation and ciphertext size. No
password is needed and nothing is authenticated. Without arguments it
inspects the documents in the data directory.`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		dir := settings.GetString(keyDataDir)
		for _, name := range []string{core.SettingsFile, core.ContactsFile, core.HistoryFile} {
			paths = append(paths, filepath.Join(dir, name))
		}
	}

	infos := make([]docstore.Info, 0, len(paths))
	for _, p := range paths {
		info, err := docstore.Inspect(p)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	if inspectJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	out := cmd.OutOrStdout()
	for _, info := range infos {
		fmt.Fprintf(out, "%s\n", titleFmt(info.Path))
		fmt.Fprintf(out, "  version:     %d\n", info.Version)
		fmt.Fprintf(out, "  scheme:      %s\n", info.Scheme)
		fmt.Fprintf(out, "  nonce:       %d bytes\n", info.NonceSize)
		fmt.Fprintf(out, "  label:       %s\n", info.Label)
		fmt.Fprintf(out, "  generation:  %d\n", info.Generation)
		fmt.Fprintf(out, "  ciphertext:  %d bytes %s\n", info.CiphertextSize, dimFmt("(unauthenticated)"))
	}
	return nil
}
