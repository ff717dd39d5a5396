package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conclavehq/conclave/pkg/candid"
)

func newEncodeCommand() *cobra.Command {
	var (
		didFile string
		method  string
		argFile string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "encode [argument]",
		Short: "Encode textual arguments to the binary wire form",
		Long: `Encode a textual argument list to the binary wire form. With an interface
description and a method name the arguments are coerced against the
method's declared parameter types; otherwise the types are inferred.

This command needs no workspace; it is a pure codec operation.`,
		Example: `  # Encode with inferred types
  conclave encode '(42 : nat8, "hi")'

  # Encode against a method signature
  conclave encode --did ledger.did --method transfer '(record { amount = 100 })'

  # Emit the blob literal instead of hex
  conclave encode --output blob '(true)'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := "()"
			if len(args) == 1 {
				text = args[0]
			}
			if argFile != "" {
				data, err := os.ReadFile(argFile)
				if err != nil {
					return fmt.Errorf("failed to read argument file: %w", err)
				}
				text = string(data)
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

			result, err := candid.EncodeText(text, env, method)
			if err != nil {
				return err
			}

			switch output {
			case "hex":
				fmt.Println(result.Hex)
			case "blob":
				fmt.Println(result.Blob)
			case "raw":
				_, err = os.Stdout.Write(result.Raw)
				return err
			default:
				return fmt.Errorf("unknown output format %q (hex, blob, raw)", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&didFile, "did", "", "interface description file")
	cmd.Flags().StringVar(&method, "method", "", "method whose parameter types to encode against")
	cmd.Flags().StringVar(&argFile, "arg-file", "", "read the argument list from a file")
	cmd.Flags().StringVar(&output, "output", "hex", "output format: hex, blob or raw")

	return cmd
}
