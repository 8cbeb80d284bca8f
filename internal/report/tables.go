package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"

	"phenotune/internal/evaluation"
)

// ConfusionCell is one entry of the confusion matrix in long form.
type ConfusionCell struct {
	True       string  `csv:"true"`
	Predicted  string  `csv:"predicted"`
	Count      int     `csv:"count"`
	Normalized float64 `csv:"normalized"`
}

// ConfusionCells flattens the confusion matrix row by row.
func ConfusionCells(r *evaluation.Report) []*ConfusionCell {
	cells := make([]*ConfusionCell, 0, len(r.Classes)*len(r.Classes))
	for i, t := range r.Classes {
		for j, p := range r.Classes {
			cells = append(cells, &ConfusionCell{
				True:       t,
				Predicted:  p,
				Count:      r.Confusion[i][j],
				Normalized: r.Normalized[i][j],
			})
		}
	}
	return cells
}

// ConfusionCSV writes the confusion matrix in long form.
func (w *Writer) ConfusionCSV(r *evaluation.Report) (string, error) {
	path := filepath.Join(w.Dir, ConfusionCSVFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	cells := ConfusionCells(r)
	if err := gocsv.MarshalFile(&cells, f); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// FrequencyTable prints the number of rows per class.
func FrequencyTable(out io.Writer, classes []string, counts []int) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Ecoregion", "Frequency"})
	total := 0
	for i, c := range classes {
		table.Append([]string{c, humanize.Comma(int64(counts[i]))})
		total += counts[i]
	}
	table.SetFooter([]string{"Total", humanize.Comma(int64(total))})
	table.Render()
}

// ClassStatsTable prints per-class support, recall and precision.
func ClassStatsTable(out io.Writer, r *evaluation.Report) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Class", "Support", "Predicted", "Recall", "Precision"})
	for _, s := range r.PerClass {
		table.Append([]string{
			s.Label,
			humanize.Comma(int64(s.Support)),
			humanize.Comma(int64(s.Predicted)),
			strconv.FormatFloat(s.Recall, 'f', 3, 64),
			strconv.FormatFloat(s.Precision, 'f', 3, 64),
		})
	}
	table.Render()
	fmt.Fprintf(out, "Accuracy: %.4f over %s rows\n", r.Accuracy, humanize.Comma(int64(len(r.True))))
}

// ConfusionTable prints the normalized confusion matrix with true classes as rows.
func ConfusionTable(out io.Writer, r *evaluation.Report) {
	table := tablewriter.NewWriter(out)
	table.SetHeader(append([]string{"True \\ Pred"}, r.Classes...))
	for i, c := range r.Classes {
		row := []string{c}
		for _, v := range r.Normalized[i] {
			row = append(row, strconv.FormatFloat(v, 'f', 2, 64))
		}
		table.Append(row)
	}
	table.Render()
}
