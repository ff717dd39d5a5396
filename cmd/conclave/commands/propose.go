package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/config"
	"github.com/conclavehq/conclave/pkg/proposal"
)

func newProposeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Create a proposal",
		Long:  `Create a proposal for an action that a quorum of participants must approve.`,
	}

	cmd.AddCommand(newProposeUpdatePolicyCommand())
	cmd.AddCommand(newProposeUpgradeCommand())
	cmd.AddCommand(newProposeCallCommand())

	return cmd
}

func newProposeUpdatePolicyCommand() *cobra.Command {
	var (
		policyFile  string
		description string
	)

	cmd := &cobra.Command{
		Use:   "update-policy",
		Short: "Propose replacing the governance policy",
		Example: `  # Propose the policy in new-policy.yaml
  conclave propose update-policy --policy new-policy.yaml --about "add carol"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			policy, err := config.LoadPolicy(policyFile)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			caller, err := a.callerPrincipal()
			if err != nil {
				return err
			}
			created, err := a.engine.Create(ctx, caller,
				proposal.Payload{PolicyUpdate: &policy}, description)
			if err != nil {
				return err
			}
			return printProposal(created)
		},
	}

	cmd.Flags().StringVar(&policyFile, "policy", "", "replacement policy YAML file (required)")
	cmd.Flags().StringVar(&description, "about", "", "free-text description")
	_ = cmd.MarkFlagRequired("policy")

	return cmd
}

func newProposeUpgradeCommand() *cobra.Command {
	var (
		uploader    string
		target      string
		operator    string
		hash        string
		length      uint64
		argument    string
		argFile     string
		description string
	)

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Propose upgrading a remote process",
		Long: `Propose shipping a new program image to a remote process through the
upload collaborator. The image is addressed by its hash; the collaborator
verifies it before the upgrade runs.`,
		Example: `  # Propose an upgrade with a constructor argument
  conclave propose upgrade \
    --uploader aaaaa-aa --target 2vxsx-fae --operator 2vxsx-fae \
    --hash 9f86d081884c7d65 --arg '(record { count = 5 : nat64 })'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			uploaderID, err := candid.PrincipalFromText(uploader)
			if err != nil {
				return fmt.Errorf("invalid uploader principal: %w", err)
			}
			targetID, err := candid.PrincipalFromText(target)
			if err != nil {
				return fmt.Errorf("invalid target principal: %w", err)
			}
			operatorID, err := candid.PrincipalFromText(operator)
			if err != nil {
				return fmt.Errorf("invalid operator principal: %w", err)
			}
			arg, err := readArgument(argument, argFile)
			if err != nil {
				return err
			}

			upgrade := &proposal.RemoteUpgrade{
				UploaderID:   uploaderID,
				TargetID:     targetID,
				OperatorID:   operatorID,
				ExpectedHash: hash,
				Argument:     arg,
			}
			if cmd.Flags().Changed("length") {
				upgrade.ExpectedLength = &length
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			caller, err := a.callerPrincipal()
			if err != nil {
				return err
			}
			created, err := a.engine.Create(ctx, caller,
				proposal.Payload{RemoteUpgrade: upgrade}, description)
			if err != nil {
				return err
			}
			return printProposal(created)
		},
	}

	cmd.Flags().StringVar(&uploader, "uploader", "", "upload collaborator principal (required)")
	cmd.Flags().StringVar(&target, "target", "", "process to upgrade (required)")
	cmd.Flags().StringVar(&operator, "operator", "", "grant operator principal (required)")
	cmd.Flags().StringVar(&hash, "hash", "", "expected image hash, hex (required)")
	cmd.Flags().Uint64Var(&length, "length", 0, "expected image length in bytes")
	cmd.Flags().StringVar(&argument, "arg", "()", "constructor argument, textual form")
	cmd.Flags().StringVar(&argFile, "arg-file", "", "read the argument from a file instead")
	cmd.Flags().StringVar(&description, "about", "", "free-text description")
	_ = cmd.MarkFlagRequired("uploader")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("operator")
	_ = cmd.MarkFlagRequired("hash")

	return cmd
}

func newProposeCallCommand() *cobra.Command {
	var (
		target      string
		method      string
		argument    string
		argFile     string
		payment     uint64
		didFile     string
		description string
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Propose calling a remote process",
		Example: `  # Propose a transfer call, decoding the reply with an interface file
  conclave propose call --target 2vxsx-fae --method transfer \
    --arg '(record { amount = 100 : nat64 })' --did ledger.did`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			targetID, err := candid.PrincipalFromText(target)
			if err != nil {
				return fmt.Errorf("invalid target principal: %w", err)
			}
			arg, err := readArgument(argument, argFile)
			if err != nil {
				return err
			}

			call := &proposal.RemoteCall{
				TargetID: targetID,
				Method:   method,
				Argument: arg,
			}
			if cmd.Flags().Changed("payment") {
				call.Payment = &payment
			}
			if didFile != "" {
				did, err := os.ReadFile(didFile)
				if err != nil {
					return fmt.Errorf("failed to read interface description: %w", err)
				}
				call.Description = string(did)
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			caller, err := a.callerPrincipal()
			if err != nil {
				return err
			}
			created, err := a.engine.Create(ctx, caller,
				proposal.Payload{RemoteCall: call}, description)
			if err != nil {
				return err
			}
			return printProposal(created)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "process to call (required)")
	cmd.Flags().StringVar(&method, "method", "", "remote method name (required)")
	cmd.Flags().StringVar(&argument, "arg", "()", "call argument, textual form")
	cmd.Flags().StringVar(&argFile, "arg-file", "", "read the argument from a file instead")
	cmd.Flags().Uint64Var(&payment, "payment", 0, "amount attached to the call")
	cmd.Flags().StringVar(&didFile, "did", "", "interface description used to decode the reply")
	cmd.Flags().StringVar(&description, "about", "", "free-text description")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("method")

	return cmd
}

func readArgument(inline, file string) (string, error) {
	if file == "" {
		return inline, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read argument file: %w", err)
	}
	return string(data), nil
}
