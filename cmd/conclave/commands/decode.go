package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conclavehq/conclave/pkg/candid"
)

func newDecodeCommand() *cobra.Command {
	var (
		didFile string
		method  string
		inFile  string
	)

	cmd := &cobra.Command{
		Use:   "decode [message]",
		Short: "Decode a binary message to the textual form",
		Long: `Decode a binary message. The input may be raw bytes, hex text or a
textual blob literal; it is detected automatically. With an interface
description and a method the message decodes against the method's return
types, falling back to the schemaless decode when that fails.

This command needs no workspace; it is a pure codec operation.`,
		Example: `  # Decode a hex message schemalessly
  conclave decode 4449444c00017b2a

  # Decode against a method's return types
  conclave decode --did ledger.did --method balance 4449444c00017d05

  # Decode raw bytes from a file
  conclave decode --in response.bin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input []byte
			switch {
			case inFile == "-":
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				input = data
			case inFile != "":
				data, err := os.ReadFile(inFile)
				if err != nil {
					return fmt.Errorf("failed to read message file: %w", err)
				}
				input = data
			case len(args) == 1:
				input = []byte(args[0])
			default:
				return fmt.Errorf("no message given: pass it as an argument or via --in")
			}

			raw, err := candid.NormalizeResponse(input)
			if err != nil {
				return err
			}

			var env *candid.TypeEnv
			if didFile != "" {
				data, err := os.ReadFile(didFile)
				if err != nil {
					return fmt.Errorf("failed to read interface description: %w", err)
				}
				env, err = candid.ParseDescription(string(data))
				if err != nil {
					return err
				}
			}

			result, err := candid.DecodeResponse(raw, env, method)
			if err != nil {
				return err
			}
			fmt.Println(result.Text)
			if result.Schemaless && result.DecodeError != "" {
				fmt.Fprintf(os.Stderr, "interface-guided decode failed, showing schemaless form: %s\n",
					result.DecodeError)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&didFile, "did", "", "interface description file")
	cmd.Flags().StringVar(&method, "method", "", "method whose return types to decode against")
	cmd.Flags().StringVar(&inFile, "in", "", "read the message from a file (- for stdin)")

	return cmd
}
