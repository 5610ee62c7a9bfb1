package geofence

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

const (
	// DefaultJSONFile is the default prepare-time polygon source
	DefaultJSONFile = "polygons.json"
	// DefaultGeoFile is the default binary datafile name
	DefaultGeoFile = "geofence.geo"
)

// Point is a lng,lat pair, in the order coordinates appear on disk.
type Point [2]float64

// Polygon is an ordered ring of points; closure back to the first
// point is implicit, so the first point need not be repeated.
type Polygon []Point

// Marshal encodes the polygon set in the geodata file format.
func Marshal(polygons []Polygon) []byte {
	size := headerSize
	for _, poly := range polygons {
		size += polygonHeaderSize + len(poly)*coordSize
	}
	buf := make([]byte, size)
	copy(buf, magic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(polygons)))
	off := headerSize
	for _, poly := range polygons {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(poly)))
		off += polygonHeaderSize
		for _, pt := range poly {
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(pt[0]))
			binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(pt[1]))
			off += coordSize
		}
	}
	return buf
}

// WriteFile writes the polygon set as a geodata file.
func WriteFile(filename string, polygons []Polygon) error {
	return os.WriteFile(filename, Marshal(polygons), 0o644)
}

// LoadPolygonsJSON loads a JSON polygon dump: an array of polygons,
// each an array of [lng, lat] pairs.
func LoadPolygonsJSON(filename string) ([]Polygon, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var polygons []Polygon
	dec := json.NewDecoder(f)
	if err := dec.Decode(&polygons); err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", filename, err)
	}
	return polygons, nil
}

// ProcessJSONData converts a JSON polygon dump into the compact binary
// datafile used at query time.
func ProcessJSONData(source, saved string) error {
	polygons, err := LoadPolygonsJSON(source)
	if err != nil {
		return fmt.Errorf("failed to process %q -- %w", source, err)
	}
	return WriteFile(saved, polygons)
}
