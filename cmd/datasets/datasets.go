// Package datasets implements the dataset listing command.
package datasets

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/GodspeedAgent/dpd-dispatch/cmd/common"
	"github.com/GodspeedAgent/dpd-dispatch/internal/dataset"
)

// Command returns the datasets command.
func Command() *cobra.Command {
	var showFields bool

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the built-in dataset presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showFields {
				return runFields(cmd)
			}
			return runList()
		},
	}

	cmd.Flags().BoolVar(&showFields, "fields", false,
		"fetch and list the configured dataset's field names")

	return cmd
}

func runList() error {
	rows := make([]table.Row, 0)
	for _, preset := range dataset.Presets() {
		profile, err := dataset.FromPreset(string(preset), "")
		if err != nil {
			continue
		}

		timestamps := "no"
		if profile.SupportsTimestamps() {
			timestamps = profile.DatetimeField
		}
		rows = append(rows, table.Row{
			string(preset), profile.DatasetID, profile.Name, timestamps, profile.Description,
		})
	}

	common.RenderTable(
		table.Row{"Preset", "Dataset ID", "Name", "Datetime Field", "Description"},
		rows,
	)
	return nil
}

// runFields queries the live dataset metadata for its column names.
func runFields(cmd *cobra.Command) error {
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

	names, err := client.FieldNames(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch dataset metadata: %w", err)
	}

	fmt.Printf("%s (%s): %d field(s)\n", profile.Name, profile.DatasetID, len(names))
	for _, name := range names {
		fmt.Println("  " + name)
	}
	return nil
}
