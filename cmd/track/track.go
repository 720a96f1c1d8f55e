// Package track implements the call tracking commands: capture active
// calls for follow-up, inspect the tracked set, and generate historical
// queries that cover the captured calls.
package track

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/GodspeedAgent/dpd-dispatch/cmd/common"
	"github.com/GodspeedAgent/dpd-dispatch/internal/dataset"
	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
	"github.com/GodspeedAgent/dpd-dispatch/internal/tracker"
)

// defaultTrackerFile is where tracked calls persist between runs.
const defaultTrackerFile = "tracked_calls.json"

const capturedAtLayout = "2006-01-02 15:04"

// Command returns the track command tree.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track active calls for follow-up",
		Long: `Capture active calls into a tracker file, then generate queries
against the historical incidents dataset once the calls have landed there.`,
	}

	cmd.PersistentFlags().String("file", defaultTrackerFile, "tracker file path")

	cmd.AddCommand(addCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(summaryCommand())
	cmd.AddCommand(queriesCommand())

	return cmd
}

func trackerFile(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = defaultTrackerFile
	}
	return path
}

func addCommand() *cobra.Command {
	var (
		beat      string
		nature    string
		notes     string
		tags      []string
		fromStdin bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Capture active calls into the tracker",
		Long: `Fetch the current active calls and capture the ones matching the
filters. With --stdin the records are read as a JSON array from standard
input instead of the live feed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Setup(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			records, err := fetchRecords(cmd, deps, fromStdin)
			if err != nil {
				return err
			}

			path := trackerFile(cmd)
			t, err := tracker.LoadCallTracker(path)
			if err != nil {
				return err
			}

			filter := buildFilter(beat, nature)
			captured := t.TrackMultiple(records, filter, notes, tags)
			if err := t.Save(path); err != nil {
				return err
			}

			fmt.Printf("Tracked %d of %d call(s) into %s\n",
				len(captured), len(records), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&beat, "beat", "", "only capture calls in this beat")
	cmd.Flags().StringVar(&nature, "nature", "", "only capture calls whose nature contains this text")
	cmd.Flags().StringVar(&notes, "notes", "", "notes attached to every captured call")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "tags attached to every captured call")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read call records from stdin instead of the live feed")

	return cmd
}

func fetchRecords(cmd *cobra.Command, deps *common.CommandDeps, fromStdin bool) ([]map[string]any, error) {
	if fromStdin {
		var records []map[string]any
		if err := json.NewDecoder(cmd.InOrStdin()).Decode(&records); err != nil {
			return nil, fmt.Errorf("parse records from stdin: %w", err)
		}
		return records, nil
	}

	profile, err := deps.Profile()
	if err != nil {
		return nil, err
	}
	client := deps.SodaClient(profile)
	defer client.Close()

	resp, err := client.GetIncidents(cmd.Context(), newActiveQuery())
	if err != nil {
		return nil, fmt.Errorf("fetch active calls: %w", err)
	}
	return resp.Records, nil
}

// buildFilter combines the beat and nature filters; nil means capture all.
func buildFilter(beat, nature string) func(map[string]any) bool {
	if beat == "" && nature == "" {
		return nil
	}
	nature = strings.ToLower(nature)

	return func(record map[string]any) bool {
		if beat != "" {
			if b, _ := record["beat"].(string); b != beat {
				return false
			}
		}
		if nature != "" {
			n, _ := record["nature_of_call"].(string)
			if !strings.Contains(strings.ToLower(n), nature) {
				return false
			}
		}
		return true
	}
}

func listCommand() *cobra.Command {
	var (
		tag  string
		beat string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tracker.LoadCallTracker(trackerFile(cmd))
			if err != nil {
				return err
			}

			calls := t.Calls
			switch {
			case tag != "":
				calls = t.FilterByTag(tag)
			case beat != "":
				calls = t.FilterByBeat(beat)
			}

			if len(calls) == 0 {
				fmt.Println("No tracked calls.")
				return nil
			}

			rows := make([]table.Row, 0, len(calls))
			for _, call := range calls {
				rows = append(rows, table.Row{
					call.CapturedAt.Local().Format(capturedAtLayout),
					call.Beat,
					call.NatureOfCall,
					call.Location,
					strings.Join(call.Tags, ","),
					call.Notes,
				})
			}
			common.RenderTable(
				table.Row{"Captured", "Beat", "Nature", "Location", "Tags", "Notes"},
				rows,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "only list calls carrying this tag")
	cmd.Flags().StringVar(&beat, "beat", "", "only list calls in this beat")

	return cmd
}

func summaryCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the tracked calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tracker.LoadCallTracker(trackerFile(cmd))
			if err != nil {
				return err
			}
			summary := t.Summary()

			if asJSON {
				return common.RenderJSON(cmd.OutOrStdout(), summary)
			}

			fmt.Printf("Tracked calls: %d\n", summary.Total)
			if summary.Total == 0 {
				return nil
			}
			fmt.Printf("Captured between %s and %s\n",
				summary.EarliestCapture.Local().Format(capturedAtLayout),
				summary.LatestCapture.Local().Format(capturedAtLayout))
			printCounts("By beat", summary.ByBeat)
			printCounts("By nature", summary.ByNature)
			printCounts("By tag", summary.ByTag)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")

	return cmd
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Println(title + ":")
	for key, count := range counts {
		fmt.Printf("  %-30s %d\n", key, count)
	}
}

func queriesCommand() *cobra.Command {
	var (
		days    int
		limit   int
		execute bool
	)

	cmd := &cobra.Command{
		Use:   "queries",
		Short: "Generate historical queries covering the tracked calls",
		Long: `Generate one historical-dataset query per beat with tracked calls,
each spanning the beat's capture dates widened by the follow-up window.
With --run the queries execute against the historical incidents dataset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tracker.LoadCallTracker(trackerFile(cmd))
			if err != nil {
				return err
			}

			queries := t.GenerateQueries(days, limit)
			if len(queries) == 0 {
				fmt.Println("No tracked calls, nothing to query.")
				return nil
			}

			if !execute {
				// Compile against the historical dataset's field mapping
				// so the printed SoQL is what --run would send.
				profile, err := dataset.FromPreset(string(dataset.PresetPoliceIncidents), "")
				if err != nil {
					return err
				}
				compiler := query.NewCompiler(profile, nil, nil)

				rows := make([]table.Row, 0, len(queries))
				for _, q := range queries {
					rows = append(rows, table.Row{
						strings.Join(q.Beats, ","),
						compiler.Compile(q).Where,
						q.Limit,
					})
				}
				common.RenderTable(table.Row{"Beat", "Where", "Limit"}, rows)
				return nil
			}

			deps, err := common.Setup(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			// Follow-up queries always target the historical dataset,
			// whatever preset the rest of the config selects.
			profile, err := dataset.FromPreset(
				string(dataset.PresetPoliceIncidents), deps.Config.Dataset.AppToken)
			if err != nil {
				return err
			}
			client := deps.SodaClient(profile)
			defer client.Close()

			for _, q := range queries {
				resp, err := client.GetIncidents(cmd.Context(), q)
				if err != nil {
					return fmt.Errorf("query beat %s: %w", strings.Join(q.Beats, ","), err)
				}
				fmt.Printf("Beat %s: %d incident(s) between %s and %s\n",
					strings.Join(q.Beats, ","),
					resp.Count,
					q.DateRange.Start.Format("2006-01-02"),
					q.DateRange.End.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", tracker.DefaultSearchWindowDays,
		"days after capture to include in each search window")
	cmd.Flags().IntVar(&limit, "limit", 0, "record limit per generated query")
	cmd.Flags().BoolVar(&execute, "run", false, "execute the generated queries")

	return cmd
}

// newActiveQuery asks for everything the active-calls feed has right now.
func newActiveQuery() *query.Query {
	return query.New()
}
