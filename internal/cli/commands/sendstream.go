package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stratum/pkg/sendstream"
	"stratum/pkg/sendstream/upgrade"
)

// NewSendstreamCommand returns the `stratumctl sendstream` command group.
func NewSendstreamCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sendstream",
		Short: "Inspect and upgrade btrfs send streams",
	}
	cmd.AddCommand(newSendstreamParseCommand())
	cmd.AddCommand(newSendstreamUpgradeCommand())
	return cmd
}

func newSendstreamParseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a send stream and print its command sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			version, commands, err := sendstream.ParseAll(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d, %d commands\n", version, len(commands))
			for _, c := range commands {
				fmt.Fprintf(cmd.OutOrStdout(), "%s", c.Type)
				if path, ok := c.Path(); ok {
					fmt.Fprintf(cmd.OutOrStdout(), " path=%s", path)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	return cmd
}

func newSendstreamUpgradeCommand() *cobra.Command {
	var outPath string
	var maxBatch int

	cmd := &cobra.Command{
		Use:   "upgrade <file>",
		Short: "Rewrite a v1 send stream into v2 with coalesced, compressed writes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			_, commands, err := sendstream.ParseAll(data)
			if err != nil {
				return err
			}
			upgraded, err := upgrade.Upgrade(commands, upgrade.Config{MaxBatchedExtentSize: maxBatch})
			if err != nil {
				return fmt.Errorf("upgrading: %w", err)
			}
			out, err := sendstream.Serialize(sendstream.Version2, upgraded)
			if err != nil {
				return fmt.Errorf("serializing: %w", err)
			}
			if err := os.WriteFile(outPath, out, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d commands (%d bytes) to %s\n", len(upgraded), len(out), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path for the upgraded v2 stream")
	cmd.Flags().IntVar(&maxBatch, "max-batched-extent-size", upgrade.DefaultMaxBatchedExtentSize, "maximum bytes to coalesce into one EncodedWrite")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
