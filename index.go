package geofence

import (
	"github.com/tidwall/rtree"
)

/*
	Index lookup strategy

	The linear scan in Dataset.Contains is fine for a handful of
	polygons, but a dataset covering many regions pays for every miss.
	An Index pre-filters with per-polygon bounding boxes: the rtree is
	queried for all polygons whose bbox contains the point, and only
	those candidates run the exact ray cast.

	The boolean answer is always identical to the linear scan; only
	candidate order may differ, and "inside any polygon" does not
	depend on order.
*/

// Index accelerates Contains with a bounding-box rtree built once
// over a Dataset. Like the Dataset it wraps, it is immutable and safe
// for concurrent readers.
type Index struct {
	d  *Dataset
	tr rtree.RTree
}

// NewIndex builds the bounding-box index for d. A nil or empty
// dataset yields an index that never matches.
func NewIndex(d *Dataset) *Index {
	ix := &Index{d: d}
	if d == nil {
		return ix
	}
	d.visit(func(ring []byte) bool {
		if len(ring) == 0 {
			// zero-coordinate polygons never match, skip them
			return true
		}
		min, max := ringBounds(ring)
		ix.tr.Insert(min, max, ring)
		return true
	})
	return ix
}

// Contains reports whether any polygon contains the location, with
// the same contract as Dataset.Contains.
func (ix *Index) Contains(lng, lat float64) bool {
	if ix == nil || ix.d == nil {
		return false
	}
	if lng < -180 || lng > 180 || lat < -180 || lat > 180 {
		return false
	}
	pt := [2]float64{lng, lat}
	found := false
	ix.tr.Search(pt, pt,
		func(min, max [2]float64, value interface{}) bool {
			if ringContains(value.([]byte), lng, lat) {
				found = true
				return false
			}
			return true
		})
	return found
}

// Dataset returns the dataset the index was built over.
func (ix *Index) Dataset() *Dataset {
	return ix.d
}

// ringBounds computes the bounding box of one packed ring, which must
// not be empty.
func ringBounds(ring []byte) (min, max [2]float64) {
	lng, lat := coordinateAt(ring, 0)
	min = [2]float64{lng, lat}
	max = min
	n := len(ring) / coordSize
	for i := 1; i < n; i++ {
		lng, lat = coordinateAt(ring, i)
		if lng < min[0] {
			min[0] = lng
		}
		if lat < min[1] {
			min[1] = lat
		}
		if lng > max[0] {
			max[0] = lng
		}
		if lat > max[1] {
			max[1] = lat
		}
	}
	return min, max
}
