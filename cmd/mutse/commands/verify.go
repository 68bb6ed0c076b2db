package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"mutse/internal/crypto"
	"mutse/internal/store"
	"mutse/internal/tree"
)

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <output>",
		Short: "Check decrypted files against the manifest of the last run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			ms := store.NewManifestFileStore(root)
			if !tree.Exists(ms.Path()) {
				return fmt.Errorf("no manifest in %s", root)
			}
			m, err := ms.LoadManifest()
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(m.Entries))
			for k := range m.Entries {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			problems := 0
			for _, k := range keys {
				e := m.Entries[k]
				got, err := crypto.DigestFile(filepath.Join(root, filepath.FromSlash(e.Output)))
				switch {
				case errors.Is(err, os.ErrNotExist):
					problems++
					fmt.Fprintf(out, "  ✗ %s: missing\n", e.Output)
				case err != nil:
					problems++
					fmt.Fprintf(out, "  ✗ %s: %v\n", e.Output, err)
				case got != e.OutputDigest:
					problems++
					fmt.Fprintf(out, "  ✗ %s: digest mismatch\n", e.Output)
				}
			}
			fmt.Fprintf(out, "Verified %d files from run %s, %d problems\n", len(keys), m.RunID, problems)
			if problems > 0 {
				return fmt.Errorf("%d files do not match the manifest", problems)
			}
			return nil
		},
	}
}
