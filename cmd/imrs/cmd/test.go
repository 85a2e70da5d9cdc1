package cmd

import (
	"imrs-backend/internal/ratings"

	"github.com/spf13/cobra"
)

func init() {
	testCmd.Flags().StringP("output", "o", "test.png", "where to write the chart")
	testCmd.Flags().Bool("table", false, "also print the ratings as a table")
	rootCmd.AddCommand(testCmd)
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Charts a built-in dataset without touching the network.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		printTable, _ := cmd.Flags().GetBool("table")

		record := FixtureRecord()
		if printTable {
			renderTable(record)
		}
		return writeChart(record, output)
	},
}

// FixtureRecord is the first five seasons of Breaking Bad.
func FixtureRecord() ratings.RatingRecord {
	seasons := map[string][]float64{
		"1": {9.0, 8.6, 8.7, 8.2, 8.3, 9.3, 8.8},
		"2": {8.6, 9.3, 8.3, 8.2, 8.3, 8.8, 8.6, 9.2, 9.1, 8.4, 8.9, 9.3, 9.2},
		"3": {8.5, 8.6, 8.4, 8.2, 8.5, 9.3, 9.6, 8.7, 8.4, 7.9, 8.4, 9.5, 9.7},
		"4": {9.2, 8.2, 8.0, 8.6, 8.6, 8.4, 8.8, 9.3, 8.8, 9.6, 9.7, 9.5, 9.9},
		"5": {9.2, 8.8, 8.8, 8.8, 9.7, 9.0, 9.5, 9.6, 9.4, 9.2, 9.6, 9.1, 9.8, 10.0, 9.7, 9.9},
	}

	record := ratings.RatingRecord{
		ShowTitle: "Breaking Bad",
		Ratings:   make(map[string]ratings.SeasonRatings, len(seasons)),
	}
	for label, values := range seasons {
		record.Ratings[label] = ratings.SeasonRatings{Season: label, Ratings: values}
	}
	return record
}
