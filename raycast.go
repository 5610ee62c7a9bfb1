package geofence

import (
	"encoding/binary"
	"math"
)

// hitTest scans polygons in file order and stops at the first one
// containing the point. Order only affects latency: the answer is
// "inside any polygon", so it is the same whichever polygon wins.
func (d *Dataset) hitTest(lng, lat float64) bool {
	hit := false
	d.visit(func(ring []byte) bool {
		if ringContains(ring, lng, lat) {
			hit = true
			return false
		}
		return true
	})
	return hit
}

// ringContains is the even-odd ray cast over one polygon's packed
// coordinates, cast horizontally at the query latitude. The interval
// test is half-open (<= on one end, < on the other), so a point
// exactly on a shared edge may classify with either neighbor; that is
// the algorithm's boundary policy, not a defect. An empty ring never
// contains anything.
func ringContains(ring []byte, lng, lat float64) bool {
	n := len(ring) / coordSize
	if n == 0 {
		return false
	}
	inside := false
	jlng, jlat := coordinateAt(ring, n-1)
	for i := 0; i < n; i++ {
		ilng, ilat := coordinateAt(ring, i)
		if (ilng <= lng && lng < jlng) || (jlng <= lng && lng < ilng) {
			if lat < (jlat-ilat)*(lng-ilng)/(jlng-ilng)+ilat {
				inside = !inside
			}
		}
		jlng, jlat = ilng, ilat
	}
	return inside
}

// coordinateAt reads coordinate i from a packed ring.
func coordinateAt(ring []byte, i int) (lng, lat float64) {
	off := i * coordSize
	lng = math.Float64frombits(binary.LittleEndian.Uint64(ring[off:]))
	lat = math.Float64frombits(binary.LittleEndian.Uint64(ring[off+8:]))
	return lng, lat
}
