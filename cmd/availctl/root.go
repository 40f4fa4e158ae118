package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"service-availability-backend/internal/avail"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "availctl",
		Short: "Inspect and convert service availability documents",
		Long: `availctl works with the availability documents the marketplace exchanges:
the flat list ([{"date","start_time","end_time"}]) and the ISO map
({"YYYY-MM-DD": [{"start","end"}]}).`,
		SilenceUsage: true,
	}
	root.AddCommand(newConvertCmd(), newCheckCmd(), newShowCmd())
	return root
}

// readInput reads the named file, or stdin for "" and "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func decodeInput(cmd *cobra.Command, from, path string) (*avail.SlotStore, avail.DecodeStats, error) {
	shape, err := avail.ParseShape(from)
	if err != nil {
		return nil, avail.DecodeStats{}, err
	}
	raw, err := readInput(cmd, path)
	if err != nil {
		return nil, avail.DecodeStats{}, fmt.Errorf("read input: %w", err)
	}
	slots, stats, err := avail.Decode(shape, raw)
	if err != nil {
		return nil, avail.DecodeStats{}, err
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d malformed entries\n", stats.Skipped)
	}
	return slots, stats, nil
}

func validatorFor(minMinutes int) avail.Validator {
	return avail.Validator{MinDuration: time.Duration(minMinutes) * time.Minute}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
