// Package dataset loads the phenology table and prepares model inputs.
package dataset

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/mat"

	"phenotune/internal/config"
	"phenotune/internal/errors"
	"phenotune/internal/geo"
)

// FeatureNames are the phenology columns used as model inputs, in order.
var FeatureNames = []string{"greenup", "maturity", "senescence", "dormancy", "peak"}

// Classes are the level 1 ecoregion labels in one-hot column order.
var Classes = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13", "14", "15"}

// Record is one row of the phenology CSV. Fields stay strings so that
// empty and NA cells can be detected before conversion.
type Record struct {
	Greenup       string `csv:"greenup"`
	Maturity      string `csv:"maturity"`
	Senescence    string `csv:"senescence"`
	Dormancy      string `csv:"dormancy"`
	Peak          string `csv:"peak"`
	Latitude      string `csv:"latitude"`
	Longitude     string `csv:"longitude"`
	MaxPhenophase string `csv:"max_phenophase"`
	L1            string `csv:"L1"`
	UMDClass      string `csv:"UMD_class"`
}

// Filter holds the row exclusion and scaling rules.
type Filter struct {
	MaxPhenophase     float64
	ExcludedRegions   []string
	ExcludedLandCover []int
	DaysPerYear       float64
}

// FilterFromConfig extracts the filter from the data configuration.
func FilterFromConfig(c config.DataConfig) Filter {
	return Filter{
		MaxPhenophase:     c.MaxPhenophase,
		ExcludedRegions:   c.ExcludedRegions,
		ExcludedLandCover: c.ExcludedLandCover,
		DaysPerYear:       c.DaysPerYear,
	}
}

// Drop reasons reported in LoadStats.
const (
	DropComplexCycle = "complex_phenocycle"
	DropRegion       = "excluded_region"
	DropLandCover    = "excluded_land_cover"
	DropMissing      = "missing_value"
	DropUnknownClass = "unknown_class"
)

// LoadStats counts what happened to the rows read.
type LoadStats struct {
	Read    int
	Kept    int
	Dropped map[string]int
}

// Dataset is the cleaned table: scaled features, one-hot labels and site locations.
type Dataset struct {
	Features *mat.Dense
	Labels   *mat.Dense
	Coords   []geo.Coordinate
	Regions  []string
}

// Rows returns the number of samples.
func (d *Dataset) Rows() int {
	return len(d.Regions)
}

// Load reads and cleans the CSV at path.
func Load(path string, f Filter) (*Dataset, *LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.NewAppErrorWithDetails(errors.ErrCodeDataInvalid, "cannot open dataset", path, err)
	}
	defer file.Close()
	return Read(file, f)
}

// Read decodes and cleans CSV rows from r.
func Read(r io.Reader, f Filter) (*Dataset, *LoadStats, error) {
	if f.DaysPerYear <= 0 {
		return nil, nil, errors.Configuration("days per year must be positive, got %g", f.DaysPerYear)
	}

	var records []*Record
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, nil, errors.NewAppError(errors.ErrCodeDataInvalid, "cannot decode dataset", err)
	}

	stats := &LoadStats{Read: len(records), Dropped: make(map[string]int)}
	classIndex := make(map[string]int, len(Classes))
	for i, c := range Classes {
		classIndex[c] = i
	}
	excludedRegion := make(map[string]bool, len(f.ExcludedRegions))
	for _, region := range f.ExcludedRegions {
		excludedRegion[normalizeLabel(region)] = true
	}
	excludedCover := make(map[int]bool, len(f.ExcludedLandCover))
	for _, c := range f.ExcludedLandCover {
		excludedCover[c] = true
	}

	var features, labels []float64
	var coords []geo.Coordinate
	var regions []string
	for _, rec := range records {
		reason, row, coord := f.clean(rec, excludedRegion, excludedCover)
		if reason == "" {
			if _, ok := classIndex[normalizeLabel(rec.L1)]; !ok {
				reason = DropUnknownClass
			}
		}
		if reason != "" {
			stats.Dropped[reason]++
			continue
		}

		region := normalizeLabel(rec.L1)
		onehot := make([]float64, len(Classes))
		onehot[classIndex[region]] = 1
		features = append(features, row...)
		labels = append(labels, onehot...)
		coords = append(coords, coord)
		regions = append(regions, region)
	}

	stats.Kept = len(regions)
	if stats.Kept == 0 {
		return nil, stats, errors.NewAppErrorWithDetails(errors.ErrCodeDataInvalid, "no usable rows",
			fmt.Sprintf("%d rows read", stats.Read), nil)
	}
	return &Dataset{
		Features: mat.NewDense(stats.Kept, len(FeatureNames), features),
		Labels:   mat.NewDense(stats.Kept, len(Classes), labels),
		Coords:   coords,
		Regions:  regions,
	}, stats, nil
}

// clean applies the exclusion rules in order and returns the scaled feature row,
// or the reason the record was dropped.
func (f Filter) clean(rec *Record, excludedRegion map[string]bool, excludedCover map[int]bool) (string, []float64, geo.Coordinate) {
	maxPhase, hasPhase := parseCell(rec.MaxPhenophase)
	if hasPhase && maxPhase > f.MaxPhenophase {
		return DropComplexCycle, nil, geo.Coordinate{}
	}
	region := normalizeLabel(rec.L1)
	if excludedRegion[region] {
		return DropRegion, nil, geo.Coordinate{}
	}
	cover, hasCover := parseCell(rec.UMDClass)
	if hasCover && excludedCover[int(cover)] {
		return DropLandCover, nil, geo.Coordinate{}
	}
	if !hasPhase || !hasCover || region == "" {
		return DropMissing, nil, geo.Coordinate{}
	}

	cells := []string{rec.Greenup, rec.Maturity, rec.Senescence, rec.Dormancy, rec.Peak}
	row := make([]float64, len(cells))
	for i, cell := range cells {
		v, ok := parseCell(cell)
		if !ok {
			return DropMissing, nil, geo.Coordinate{}
		}
		row[i] = scaleDay(v, f.DaysPerYear)
	}
	lat, okLat := parseCell(rec.Latitude)
	lon, okLon := parseCell(rec.Longitude)
	if !okLat || !okLon {
		return DropMissing, nil, geo.Coordinate{}
	}
	return "", row, geo.Coordinate{Latitude: lat, Longitude: lon}
}

func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil && v == math.Trunc(v) {
		return strconv.Itoa(int(v))
	}
	return s
}

// parseCell converts a cell, reporting false for empty, NA and non-finite cells.
func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "<na>":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// scaleDay wraps a day of year past the end of the year and scales it to a year fraction.
func scaleDay(day, daysPerYear float64) float64 {
	if day > daysPerYear {
		day -= daysPerYear
	}
	return day / daysPerYear
}
