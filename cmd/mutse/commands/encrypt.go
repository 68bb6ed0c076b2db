package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <input> <output>",
		Short: "Obfuscate an XML file into .exdf form",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := buildWire(nil)
			if err != nil {
				return err
			}
			if err := w.Exdf.EncryptFile(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Encrypted %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}
