// Package geo holds site locations shared by data loading and evaluation.
package geo

// Coordinate is a site location in degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}
