// Package geocode implements the address geocoding command: single-address
// lookups, batch annotation of call records, and cache maintenance.
package geocode

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/GodspeedAgent/dpd-dispatch/cmd/common"
	"github.com/GodspeedAgent/dpd-dispatch/internal/geocode"
)

type options struct {
	block    string
	location string
	batch    string
	output   string
	asJSON   bool
}

// Command returns the geocode command.
func Command() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "geocode [address]",
		Short: "Resolve addresses to coordinates",
		Long: `Resolve a Dallas-area address to coordinates. Intersections written
as "STREET / STREET" or "STREET & STREET" resolve to a two-point line.
Results are cached in a JSON file; cached addresses never hit the provider.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.block, "block", "", "block number prefixed to the street name")
	flags.StringVar(&opts.location, "location", "", "street name or intersection")
	flags.StringVar(&opts.batch, "batch", "", "JSON file of call records to annotate")
	flags.StringVar(&opts.output, "output", "", "write annotated batch records to a file")
	flags.BoolVar(&opts.asJSON, "json", false, "print results as JSON")

	cmd.PersistentFlags().String("cache", "", "cache file path (default from config)")

	cmd.AddCommand(statsCommand())
	cmd.AddCommand(clearCommand())

	return cmd
}

// applyCacheFlag lets --cache override the configured cache path.
func applyCacheFlag(cmd *cobra.Command, deps *common.CommandDeps) {
	if path, _ := cmd.Flags().GetString("cache"); path != "" {
		deps.Config.Geocode.CachePath = path
	}
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	deps, err := common.Setup(cmd)
	if err != nil {
		return err
	}
	defer deps.Close()

	applyCacheFlag(cmd, deps)
	cache := deps.GeocodeCache()
	geocoder := deps.Geocoder(cache)

	if opts.batch != "" {
		return runBatch(cmd, geocoder, opts)
	}

	location := opts.location
	if location == "" {
		location = strings.Join(args, " ")
	}
	if strings.TrimSpace(location) == "" {
		return fmt.Errorf("no address given: pass one as arguments or with --location")
	}

	address := geocoder.ConstructAddress(opts.block, location)
	points, found := geocoder.Geocode(cmd.Context(), address)

	if opts.asJSON {
		return common.RenderJSON(os.Stdout, map[string]any{
			"address": address,
			"found":   found,
			"points":  points,
		})
	}

	fmt.Printf("Address: %s\n", address)
	if !found {
		fmt.Println("Not found.")
		return nil
	}
	for _, point := range points {
		fmt.Printf("  %.6f, %.6f\n", point.Lat, point.Lon)
	}
	return nil
}

// runBatch annotates every record in the batch file in place and writes
// the result out as JSON.
func runBatch(cmd *cobra.Command, geocoder *geocode.Geocoder, opts *options) error {
	data, err := os.ReadFile(opts.batch)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse batch file: %w", err)
	}

	geocoder.GeocodeCalls(cmd.Context(), records, 0)

	out := os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	return common.RenderJSON(out, records)
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show geocode cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Setup(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			applyCacheFlag(cmd, deps)
			stats := deps.GeocodeCache().Stats()
			common.RenderTable(
				table.Row{"Total", "Points", "Intersections", "Path"},
				[]table.Row{{stats.TotalEntries, stats.PointEntries, stats.IntersectionEntries, stats.Path}},
			)
			return nil
		},
	}
}

func clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the geocode cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Setup(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			applyCacheFlag(cmd, deps)
			cache := deps.GeocodeCache()
			entries := cache.Len()
			cache.Clear()
			fmt.Printf("Cleared %d cached address(es).\n", entries)
			return nil
		},
	}
}
