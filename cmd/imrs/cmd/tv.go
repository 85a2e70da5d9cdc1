package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"imrs-backend/internal/components/serviceutil"
	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/plot"
	"imrs-backend/internal/ratings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func init() {
	tvCmd.Flags().StringP("output", "o", "test.png", "where to write the chart")
	tvCmd.Flags().Bool("table", false, "also print the ratings as a table")
	tvCmd.Flags().String("dump-http", "", "write every outbound HTTP exchange into this directory")
	rootCmd.AddCommand(tvCmd)
}

var tvCmd = &cobra.Command{
	Use:   "tv <name>",
	Short: "Looks up the ratings of a TV show and charts them.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		output, _ := cmd.Flags().GetString("output")
		printTable, _ := cmd.Flags().GetBool("table")
		dumpDir, _ := cmd.Flags().GetString("dump-http")

		ctx := serviceutil.SignalContext()

		dump, err := dumpOutput(dumpDir)
		if err != nil {
			return err
		}
		cache, err := newRatingCache(config, telemetry.SlogAPI{}, dump)
		if err != nil {
			return err
		}

		slog.Info("looking up ratings", "name", name)
		identity, err := cache.LookupIdentity(ctx, name)
		if err != nil {
			return err
		}
		record, err := cache.GetOrRefresh(ctx, identity)
		if err != nil {
			return err
		}

		if printTable {
			renderTable(record)
		}
		return writeChart(record, output)
	},
}

func writeChart(record ratings.RatingRecord, output string) error {
	img, err := plot.Render(record.ShowTitle, record.Ratings, config.Image.Width, config.Image.Height)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	err = plot.EncodePNG(f, img)
	if err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	slog.Info("wrote chart", "title", record.ShowTitle, "output", output, "episodes", record.EpisodeCount())
	return nil
}

func formatRating(value float64) string {
	if value == ratings.Placeholder {
		return "-"
	}
	return fmt.Sprintf("%.1f", value)
}

func renderTable(record ratings.RatingRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(record.ShowTitle)
	t.AppendHeader(table.Row{"Season", "Episodes", "Average", "Ratings"})

	for _, season := range record.Seasons() {
		values := record.Ratings[season].Ratings

		sum, rated := 0.0, 0
		formatted := make([]string, len(values))
		for i, v := range values {
			formatted[i] = formatRating(v)
			if v != ratings.Placeholder {
				sum += v
				rated++
			}
		}
		average := "-"
		if rated > 0 {
			average = fmt.Sprintf("%.2f", sum/float64(rated))
		}

		t.AppendRow(table.Row{season, len(values), average, strings.Join(formatted, " ")})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
