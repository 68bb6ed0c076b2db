package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mutse/internal/crypto"
	"mutse/internal/document"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Describe a file: size, digest, whether it is exdf, and its root element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			isExdf, err := crypto.Sniff(bytes.NewReader(raw))
			if err != nil {
				return err
			}

			payload := raw
			if isExdf {
				payload = crypto.Decrypt(raw)
			}
			root := "-"
			if text, err := document.DecodeText(payload); err == nil {
				if name, err := document.Root(text); err == nil {
					root = "<" + name + ">"
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:        %s\n", args[0])
			fmt.Fprintf(out, "Size:        %s (%d bytes)\n", humanize.Bytes(uint64(len(raw))), len(raw))
			fmt.Fprintf(out, "Digest:      %s\n", crypto.DigestBytes(raw))
			fmt.Fprintf(out, "Fingerprint: %s\n", crypto.Fingerprint(raw))
			fmt.Fprintf(out, "Exdf:        %s\n", yesNo(isExdf))
			fmt.Fprintf(out, "Root:        %s\n", root)
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
