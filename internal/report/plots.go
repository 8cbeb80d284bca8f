// Package report renders training curves, confusion matrices, maps and tables.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"phenotune/internal/evaluation"
	"phenotune/internal/nn"
)

// Output file names.
const (
	LossCurveFile      = "loss.png"
	AccuracyCurveFile  = "accuracy.png"
	ConfusionPlotFile  = "confusion.png"
	ConfusionCSVFile   = "confusion.csv"
	PredictedMapFile   = "predicted_map.png"
	TrueMapFile        = "true_map.png"
	CorrectnessMapFile = "correctness_map.png"
)

var (
	black = color.RGBA{A: 255}
	red   = color.RGBA{R: 220, A: 255}
	blue  = color.RGBA{B: 220, A: 255}
	pink  = color.RGBA{R: 197, G: 27, B: 125, A: 255}
	green = color.RGBA{R: 77, G: 146, B: 33, A: 255}
)

// Writer saves report artifacts into a directory.
type Writer struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
}

// NewWriter creates dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	return &Writer{Dir: dir, Width: 8 * vg.Inch, Height: 6 * vg.Inch}, nil
}

func (w *Writer) save(p *plot.Plot, name string) (string, error) {
	path := filepath.Join(w.Dir, name)
	if err := p.Save(w.Width, w.Height, path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return path, nil
}

func series(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	return xys
}

func curvePlot(title, ylabel string, train, val []float64, trainName, valName string, valColor color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	trainLine, err := plotter.NewLine(series(train))
	if err != nil {
		return nil, err
	}
	trainLine.Color = black
	trainLine.Width = vg.Points(1.5)

	valLine, err := plotter.NewLine(series(val))
	if err != nil {
		return nil, err
	}
	valLine.Color = valColor
	valLine.Width = vg.Points(1.5)

	p.Add(trainLine, valLine)
	p.Legend.Add(trainName, trainLine)
	p.Legend.Add(valName, valLine)
	p.Legend.Top = true
	return p, nil
}

// TrainingCurves plots loss and accuracy against epoch for training and validation.
func (w *Writer) TrainingCurves(h *nn.History) ([]string, error) {
	if h == nil || h.Epochs() == 0 {
		return nil, fmt.Errorf("history is empty")
	}

	loss, err := curvePlot("Loss", "Loss", h.Loss, h.ValLoss, "loss", "val loss", red)
	if err != nil {
		return nil, err
	}
	lossPath, err := w.save(loss, LossCurveFile)
	if err != nil {
		return nil, err
	}

	acc, err := curvePlot("Accuracy", "Accuracy", h.Accuracy, h.ValAccuracy,
		"categorical_accuracy", "val_categorical_accuracy", blue)
	if err != nil {
		return nil, err
	}
	accPath, err := w.save(acc, AccuracyCurveFile)
	if err != nil {
		return nil, err
	}
	return []string{lossPath, accPath}, nil
}

// confusionGrid exposes a normalized confusion matrix as a heat map grid,
// with predicted classes on X and true classes on Y.
type confusionGrid struct {
	m [][]float64
}

func (g confusionGrid) Dims() (c, r int) { return len(g.m), len(g.m) }

func (g confusionGrid) Z(c, r int) float64 { return g.m[r][c] }

func (g confusionGrid) X(c int) float64 { return float64(c) }

func (g confusionGrid) Y(r int) float64 { return float64(r) }

func classTicks(classes []string) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(classes))
	for i, c := range classes {
		ticks[i] = plot.Tick{Value: float64(i), Label: c}
	}
	return ticks
}

// ConfusionHeatmap plots the column-normalized confusion matrix on a fixed [0,1] scale.
func (w *Writer) ConfusionHeatmap(r *evaluation.Report) (string, error) {
	if len(r.Normalized) == 0 {
		return "", fmt.Errorf("confusion matrix is empty")
	}
	p := plot.New()
	p.Title.Text = "Confusion matrix (normalized over predicted)"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "True"
	p.X.Tick.Marker = classTicks(r.Classes)
	p.Y.Tick.Marker = classTicks(r.Classes)

	hm := plotter.NewHeatMap(confusionGrid{m: r.Normalized}, palette.Heat(64, 1))
	hm.Min, hm.Max = 0, 1
	p.Add(hm)
	return w.save(p, ConfusionPlotFile)
}

func pointsXY(points []evaluation.SpatialPoint) plotter.XYs {
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i] = plotter.XY{X: pt.Longitude, Y: pt.Latitude}
	}
	return xys
}

func mapPlot(title string, points []evaluation.SpatialPoint, colorOf func(i int) color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	sc, err := plotter.NewScatter(pointsXY(points))
	if err != nil {
		return nil, err
	}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: colorOf(i), Radius: vg.Points(1), Shape: draw.CircleGlyph{}}
	}
	p.Add(sc)
	return p, nil
}

// Maps writes the predicted class, true class and correctness maps.
func (w *Writer) Maps(points []evaluation.SpatialPoint, numClasses int) ([]string, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to map")
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("class count must be positive, got %d", numClasses)
	}
	n := numClasses
	if n < 2 {
		n = 2
	}
	classColors := palette.Rainbow(n, palette.Blue, palette.Red, 1, 1, 1).Colors()

	maps := []struct {
		title string
		file  string
		color func(i int) color.Color
	}{
		{"Predicted ecoregion", PredictedMapFile, func(i int) color.Color { return classColors[points[i].Predicted] }},
		{"True ecoregion", TrueMapFile, func(i int) color.Color { return classColors[points[i].True] }},
		{"Correct predictions", CorrectnessMapFile, func(i int) color.Color {
			if points[i].Correct {
				return green
			}
			return pink
		}},
	}

	var paths []string
	for _, m := range maps {
		p, err := mapPlot(m.title, points, m.color)
		if err != nil {
			return nil, err
		}
		path, err := w.save(p, m.file)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
