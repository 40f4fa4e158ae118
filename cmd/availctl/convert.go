package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"service-availability-backend/internal/avail"
)

func newConvertCmd() *cobra.Command {
	var (
		from, to, file string
		minMinutes     int
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an availability document between shapes",
		Long: `Read an availability document and write it in another shape.

Invalid slots are dropped when writing the ISO map; the flat list keeps everything.

Examples:
  availctl convert --from flat --to iso < availabilities.json
  availctl convert --from iso --to flat --file availability.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := avail.ParseShape(to)
			if err != nil {
				return err
			}
			slots, _, err := decodeInput(cmd, from, file)
			if err != nil {
				return err
			}
			payload, err := avail.Encode(slots, target, validatorFor(minMinutes))
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), payload)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "input shape (flat or iso)")
	cmd.Flags().StringVar(&to, "to", "", "output shape (flat or iso)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "input file (default stdin)")
	cmd.Flags().IntVar(&minMinutes, "min-duration", 0, "drop slots shorter than this many minutes from the ISO map")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var (
		from, file string
		minMinutes int
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that a document holds at least one valid slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slots, stats, err := decodeInput(cmd, from, file)
			if err != nil {
				return err
			}
			v := validatorFor(minMinutes)
			invalid := 0
			for _, slot := range slots.All() {
				if err := v.Validate(slot); err != nil {
					invalid++
					fmt.Fprintf(cmd.OutOrStdout(), "invalid %s: %v\n", slot.Date, err)
				}
			}
			if err := v.ValidateSubmission(slots); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d slots, %d invalid, %d skipped\n", stats.Decoded, invalid, stats.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "flat", "input shape (flat or iso)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "input file (default stdin)")
	cmd.Flags().IntVar(&minMinutes, "min-duration", 0, "minimum slot length in minutes")
	return cmd
}
