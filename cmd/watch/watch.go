// Package watch implements the active-calls watch loop: poll the feed on
// an interval and report calls not seen before, with the seen-set held in
// Redis so restarts do not re-report everything.
package watch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/GodspeedAgent/dpd-dispatch/cmd/common"
	"github.com/GodspeedAgent/dpd-dispatch/internal/dedup"
	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
	"github.com/GodspeedAgent/dpd-dispatch/internal/soda"
)

type options struct {
	beats    []string
	interval time.Duration
	once     bool
}

// Command returns the watch command.
func Command() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the active-calls feed and report new calls",
		Long: `Poll the configured active-calls dataset on an interval and print
each call the first time it appears. Seen calls are tracked in Redis with
a TTL; a Redis outage degrades to reporting every call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.beats, "beats", nil, "only watch these beats")
	flags.DurationVar(&opts.interval, "interval", 0, "poll interval (default from config)")
	flags.BoolVar(&opts.once, "once", false, "poll once and exit")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
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

	redisClient := redis.NewClient(&redis.Options{
		Addr:     deps.Config.Redis.Addr,
		Password: deps.Config.Redis.Password,
		DB:       deps.Config.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()
	seen := dedup.NewTracker(redisClient, deps.Config.Redis.SeenTTL, deps.Logger)

	beats := opts.beats
	if len(beats) == 0 {
		beats = deps.Config.Watch.Beats
	}
	interval := opts.interval
	if interval <= 0 {
		interval = deps.Config.Watch.Interval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps.Logger.Info("watching active calls",
		logger.String("dataset", profile.DatasetID),
		logger.String("interval", interval.String()))

	if err := poll(ctx, client, seen, beats, deps.Logger); err != nil {
		return err
	}
	if opts.once {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			deps.Logger.Info("watch stopped")
			return nil
		case <-ticker.C:
			if err := poll(ctx, client, seen, beats, deps.Logger); err != nil {
				// One failed poll is not fatal; the feed flakes sometimes.
				deps.Logger.Error("poll failed", logger.Error(err))
			}
		}
	}
}

// poll fetches the current calls and prints the ones not seen before.
func poll(ctx context.Context, client *soda.Client, seen *dedup.Tracker, beats []string, log logger.Logger) error {
	q := query.New()
	q.Beats = beats

	resp, err := client.GetIncidents(ctx, q)
	if err != nil {
		return err
	}

	var fresh []soda.Record
	for _, record := range resp.Records {
		if seen.MarkSeen(ctx, record) {
			fresh = append(fresh, record)
		}
	}

	if len(fresh) == 0 {
		log.Debug("no new calls", logger.Int("active", resp.Count))
		return nil
	}

	fmt.Printf("\n%s — %d new call(s):\n", time.Now().Format(time.Kitchen), len(fresh))
	common.RenderRecords(os.Stdout, fresh, nil)
	return nil
}
