package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"service-availability-backend/config"
	"service-availability-backend/internal/avail"
	"service-availability-backend/internal/logging"
	"service-availability-backend/internal/remote"
	"service-availability-backend/internal/session"
)

func newShowCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "show [service-id]",
		Short: "Fetch a listing and print its availability",
		Long: `Fetch a listing from the marketplace configured in the config file and
print its slots per date, with the dates a calendar would mark.

Examples:
  availctl show 42
  availctl show 42 --config ./config/config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Env, "warn")
			if err != nil {
				return err
			}
			defer logger.Sync()

			client := remote.NewClient(cfg.Remote, logger)
			svc, err := client.GetService(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to fetch service: %w", err)
			}

			keys := cfg.Remote.AvailabilityPayloadKeys
			if len(keys) == 0 {
				keys = session.DefaultPayloadKeys
			}
			slots := avail.NewSlotStore()
			shape, raw, ok := svc.Availability(keys)
			if ok {
				var stats avail.DecodeStats
				if slots, stats, err = avail.Decode(shape, raw); err != nil {
					return err
				}
				if stats.Skipped > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d malformed entries\n", stats.Skipped)
				}
			}
			printService(cmd, svc, shape, slots, validatorFor(cfg.Engine.MinDurationMinutes))
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgFile, "config", "c", "./config/config.yaml", "config file path")
	return cmd
}

func printService(cmd *cobra.Command, svc *remote.Service, shape avail.Shape, slots *avail.SlotStore, v avail.Validator) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Service: %s\n", svc.ID)
	fmt.Fprintf(out, "  Name:   %s\n", svc.Name)
	fmt.Fprintf(out, "  Price:  %s\n", svc.Price)
	fmt.Fprintf(out, "  Type:   %s\n", svc.Type)
	fmt.Fprintf(out, "  Images: %d\n", len(svc.Images))
	if shape != "" {
		fmt.Fprintf(out, "  Shape:  %s\n", shape)
	}

	dates := slots.Dates()
	if len(dates) == 0 {
		fmt.Fprintln(out, "No availability.")
		return
	}
	for _, d := range slots.MarkedDates(dates[0]) {
		fmt.Fprintf(out, "%s\n", d)
		for _, slot := range slots.SlotsFor(d) {
			mark := ""
			if err := v.Validate(slot); err != nil {
				mark = "  (" + err.Error() + ")"
			}
			fmt.Fprintf(out, "  %s-%s%s\n", avail.ClockOf(slot.Start), avail.ClockOf(slot.End), mark)
		}
	}
}
