package plot

import (
	"imrs-backend/internal/ratings"
)

// Point is one episode on the continuous episode axis.
type Point struct {
	Episode int
	Rating  float64
	Season  string
}

// Series is the run of points belonging to one season.
type Series struct {
	Season string
	// Index is the position of the season in sorted order, it picks the color.
	Index  int
	Points []Point
}

// BuildSeries orders the seasons and numbers every episode continuously
// from 1 across season boundaries.
func BuildSeries(data map[string]ratings.SeasonRatings) []Series {
	labels := make([]string, 0, len(data))
	for label := range data {
		labels = append(labels, label)
	}
	ratings.SortSeasons(labels)

	out := make([]Series, 0, len(labels))
	episode := 1
	for i, label := range labels {
		values := data[label].Ratings
		series := Series{
			Season: label,
			Index:  i,
			Points: make([]Point, 0, len(values)),
		}
		for _, v := range values {
			series.Points = append(series.Points, Point{
				Episode: episode,
				Rating:  v,
				Season:  label,
			})
			episode++
		}
		out = append(out, series)
	}
	return out
}

func episodeCount(series []Series) int {
	total := 0
	for _, s := range series {
		total += len(s.Points)
	}
	return total
}
