// Package snapshot implements the active-calls snapshot commands: one-shot
// and cron-scheduled captures, plus statistics over the accumulated file.
package snapshot

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/GodspeedAgent/dpd-dispatch/cmd/common"
	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
	"github.com/GodspeedAgent/dpd-dispatch/internal/soda"
	"github.com/GodspeedAgent/dpd-dispatch/internal/tracker"
)

// defaultSnapshotFile is where snapshots accumulate between runs.
const defaultSnapshotFile = "snapshots.json"

// Command returns the snapshot command tree.
func Command() *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture timestamped snapshots of the active calls",
		Long: `Capture the current active calls into a snapshot file. With
--schedule the command keeps running and captures on a cron schedule
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Setup(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			profile, err := deps.Profile()
			if err != nil {
				return err
			}
			client := deps.SodaClient(profile)
			defer client.Close()

			path := snapshotFile(cmd)
			if schedule == "" {
				return capture(cmd, client, profile.DatasetID, path, deps.Logger)
			}
			return runScheduled(cmd, client, profile.DatasetID, path, schedule, deps.Logger)
		},
	}

	cmd.PersistentFlags().String("file", defaultSnapshotFile, "snapshot file path")
	cmd.Flags().StringVar(&schedule, "schedule", "",
		`cron schedule for repeated captures (e.g. "*/5 * * * *")`)

	cmd.AddCommand(statsCommand())

	return cmd
}

func snapshotFile(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = defaultSnapshotFile
	}
	return path
}

// capture takes one snapshot and appends it to the file.
func capture(cmd *cobra.Command, client *soda.Client, datasetID, path string, log logger.Logger) error {
	resp, err := client.GetIncidents(cmd.Context(), query.New())
	if err != nil {
		return fmt.Errorf("fetch active calls: %w", err)
	}

	t, err := tracker.LoadSnapshotTracker(path)
	if err != nil {
		return err
	}

	snapshot := t.TakeSnapshot(resp.Records, map[string]string{"dataset": datasetID})
	if err := t.Save(path); err != nil {
		return err
	}

	log.Info("snapshot captured",
		logger.Int("calls", snapshot.Count),
		logger.Int("snapshots", len(t.Snapshots)),
		logger.String("file", path))
	return nil
}

// runScheduled captures on the cron schedule until a signal arrives. Each
// capture reloads the file, so an external stats run never sees a torn
// write.
func runScheduled(cmd *cobra.Command, client *soda.Client, datasetID, path, schedule string, log logger.Logger) error {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(schedule, func() {
		if captureErr := capture(cmd, client, datasetID, path, log); captureErr != nil {
			log.Error("scheduled capture failed", logger.Error(captureErr))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("snapshot scheduler running",
		logger.String("schedule", schedule), logger.String("file", path))
	scheduler.Start()

	<-ctx.Done()
	log.Info("shutdown signal received")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show call volume and duration estimates from the snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tracker.LoadSnapshotTracker(snapshotFile(cmd))
			if err != nil {
				return err
			}

			if len(t.Snapshots) == 0 {
				fmt.Println("No snapshots captured.")
				return nil
			}

			first := t.Snapshots[0].Timestamp
			last := t.Snapshots[len(t.Snapshots)-1].Timestamp
			fmt.Printf("Snapshots: %d (%s to %s)\n",
				len(t.Snapshots),
				first.Local().Format(time.RFC822),
				last.Local().Format(time.RFC822))
			fmt.Printf("Average active calls: %.1f\n", t.AverageCount())
			fmt.Printf("Peak active calls: %d\n", t.PeakCount())

			estimates := t.DurationEstimates()
			if len(estimates) == 0 {
				return nil
			}

			identities := make([]string, 0, len(estimates))
			for identity := range estimates {
				identities = append(identities, identity)
			}
			sort.Strings(identities)

			rows := make([]table.Row, 0, len(identities))
			for _, identity := range identities {
				rows = append(rows, table.Row{identity, estimates[identity].Round(time.Minute)})
			}
			common.RenderTable(table.Row{"Call", "Active For (est.)"}, rows)
			return nil
		},
	}
}
