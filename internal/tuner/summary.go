package tuner

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
)

// ResultsSummary writes the top k trials as a table, followed by aggregate
// statistics over every completed trial.
func (t *Tuner) ResultsSummary(w io.Writer, k int) error {
	trials := t.Trials()
	ranked := t.Ranking()

	fmt.Fprintf(w, "Results summary (run %s)\n", t.opts.RunID)
	fmt.Fprintf(w, "Trials: %d, completed: %d, failed: %d\n",
		len(trials), len(ranked), len(trials)-len(ranked))
	if len(ranked) == 0 {
		fmt.Fprintln(w, "No completed trials.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	header := []string{"Rank", "Trial", "Source"}
	names := t.opts.Space.Params()
	for _, p := range names {
		header = append(header, p.Name)
	}
	header = append(header, "Val loss", "Val acc", "Best epoch", "Params")
	table.SetHeader(header)

	for i, r := range t.BestTrials(k) {
		row := []string{strconv.Itoa(i + 1), r.ID, r.Source}
		for _, p := range names {
			v, _ := r.Assignment.Get(p.Name)
			row = append(row, v.String())
		}
		params := 0
		if r.Model != nil {
			params = r.Model.ParamCount()
		}
		row = append(row,
			strconv.FormatFloat(r.ValLoss, 'f', 5, 64),
			strconv.FormatFloat(r.ValAccuracy, 'f', 4, 64),
			strconv.Itoa(r.BestEpoch+1),
			humanize.Comma(int64(params)))
		table.Append(row)
	}
	table.Render()

	losses := make(stats.Float64Data, 0, len(ranked))
	for _, r := range ranked {
		losses = append(losses, r.ValLoss)
	}
	mean, _ := stats.Mean(losses)
	median, _ := stats.Median(losses)
	p90, err := stats.Percentile(losses, 90)
	if err != nil {
		p90 = math.NaN()
	}
	fmt.Fprintf(w, "Val loss: best %.5f, median %.5f, mean %.5f, p90 %.5f\n",
		ranked[0].ValLoss, median, mean, p90)
	return nil
}
