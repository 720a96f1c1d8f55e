// Package query implements the incident query command: it builds a typed
// query from flags, compiles it to SoQL, and executes it against the
// configured dataset.
package query

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GodspeedAgent/dpd-dispatch/cmd/common"
	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
	"github.com/GodspeedAgent/dpd-dispatch/internal/soda"
)

// options collects every flag of the query command.
type options struct {
	beats    []string
	division string
	start    string
	end      string

	nibrs    []string
	ucr      string
	category string
	keyword  string
	text     string

	lat    float64
	lon    float64
	radius float64

	limit   int
	offset  int
	orderBy string
	selects []string
	format  string
	where   string

	all         bool
	compileOnly bool
	asJSON      bool
	output      string
}

// Command returns the query command.
func Command() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the configured incident dataset",
		Long: `Build an incident query from the flag dimensions, compile it to SoQL,
and execute it. All dimensions are optional and combine with AND.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.beats, "beats", nil, "filter by police beats")
	flags.StringVar(&opts.division, "division", "", "filter by division")
	flags.StringVar(&opts.start, "start", "", "start date (YYYY-MM-DD, whole day inclusive)")
	flags.StringVar(&opts.end, "end", "", "end date (YYYY-MM-DD, whole day inclusive)")
	flags.StringSliceVar(&opts.nibrs, "nibrs", nil, "filter by NIBRS codes")
	flags.StringVar(&opts.ucr, "ucr", "", "filter by exact UCR offense string")
	flags.StringVar(&opts.category, "category", "", "filter by semantic offense category")
	flags.StringVar(&opts.keyword, "keyword", "", "filter by offense description keyword")
	flags.StringVar(&opts.text, "text", "", "full-text search across the dataset")
	flags.Float64Var(&opts.lat, "lat", 0, "latitude for radius search")
	flags.Float64Var(&opts.lon, "lon", 0, "longitude for radius search")
	flags.Float64Var(&opts.radius, "radius", 0, "radius in meters for radius search")
	flags.IntVar(&opts.limit, "limit", 0, "maximum records per page (default 1000)")
	flags.IntVar(&opts.offset, "offset", 0, "record offset for pagination")
	flags.StringVar(&opts.orderBy, "order", "", "order by field")
	flags.StringSliceVar(&opts.selects, "select", nil, "restrict returned fields")
	flags.StringVar(&opts.format, "format", "", "output format (json, geojson, csv)")
	flags.StringVar(&opts.where, "where", "", "raw SoQL clause AND'ed into the predicate")
	flags.BoolVar(&opts.all, "all", false, "page through every matching record")
	flags.BoolVar(&opts.compileOnly, "compile-only", false, "print the compiled SODA parameters without executing")
	flags.BoolVar(&opts.asJSON, "json", false, "print records as JSON instead of a table")
	flags.StringVar(&opts.output, "output", "", "write records to a file instead of stdout")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	deps, err := common.Setup(cmd)
	if err != nil {
		return err
	}
	defer deps.Close()

	q, err := buildQuery(opts)
	if err != nil {
		return err
	}

	profile, err := deps.Profile()
	if err != nil {
		return err
	}
	client := deps.SodaClient(profile)
	defer client.Close()

	if opts.compileOnly {
		printParams(client.Compile(q))
		return nil
	}

	records, err := execute(cmd, client, q, opts.all)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	return render(records, opts)
}

// buildQuery maps the flags onto the query model. Date parsing is the only
// validation; everything else the compiler handles.
func buildQuery(opts *options) (*query.Query, error) {
	q := query.New()
	q.Beats = opts.beats
	q.Division = opts.division
	q.NIBRSCodes = opts.nibrs
	q.UCROffense = opts.ucr
	q.OffenseCategory = opts.category
	q.OffenseKeyword = opts.keyword
	q.FullText = opts.text
	q.Offset = opts.offset
	q.OrderBy = opts.orderBy
	q.SelectFields = opts.selects
	q.ExtraWhere = opts.where
	if opts.limit > 0 {
		q.Limit = opts.limit
	}

	format, err := query.ParseFormat(opts.format)
	if err != nil {
		return nil, err
	}
	q.Format = format

	if opts.start != "" || opts.end != "" {
		dr := &query.DateRange{}
		if opts.start != "" {
			if dr.Start, err = query.ParseDate(opts.start); err != nil {
				return nil, err
			}
		}
		if opts.end != "" {
			if dr.End, err = query.ParseDate(opts.end); err != nil {
				return nil, err
			}
		}
		q.DateRange = dr
	}

	if opts.lat != 0 || opts.lon != 0 || opts.radius != 0 {
		q.Geo = &query.GeoQuery{Latitude: opts.lat, Longitude: opts.lon, Radius: opts.radius}
	}

	return q, nil
}

func execute(cmd *cobra.Command, client *soda.Client, q *query.Query, all bool) ([]soda.Record, error) {
	if all {
		return client.GetAllIncidents(q).Collect(cmd.Context())
	}

	resp, err := client.GetIncidents(cmd.Context(), q)
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func render(records []soda.Record, opts *options) error {
	out := os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if opts.asJSON || opts.output != "" {
		return common.RenderJSON(out, records)
	}

	if len(records) == 0 {
		fmt.Println("No records matched.")
		return nil
	}
	common.RenderRecords(out, records, nil)
	fmt.Printf("%d record(s)\n", len(records))
	return nil
}

// printParams renders the compiled parameters one per line, sorted, with
// the values unescaped so the SoQL reads as written.
func printParams(params query.Params) {
	values := params.Encode()

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Printf("%s = %s\n", key, strings.Join(values[key], ", "))
	}
}
