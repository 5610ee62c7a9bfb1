package geofence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
)

/*
	GEODATA FILE FORMAT

	A compact binary encoding of a polygon set, built for low memory
	and fast repeated hit tests. Everything is little-endian.

	offset 0:  4 bytes  magic = 'G','E','O','!'
	offset 4:  4 bytes  num_polygons (uint32)
	offset 8:  repeated num_polygons times:
	             4 bytes  num_coordinates (uint32)
	             num_coordinates x 16 bytes:
	               8 bytes  longitude (IEEE double)
	               8 bytes  latitude  (IEEE double)

	NOTE: the format is not portable across endianness. Files must be
	produced and consumed on little-endian hosts (or via Marshal, which
	always writes little-endian).
*/

const (
	magic             = "GEO!"
	headerSize        = 8 // magic + num_polygons
	polygonHeaderSize = 4
	coordSize         = 16

	// a num_coordinates beyond this cannot express its own record
	// length in 32 bits; the original format never produced one
	maxCoordinates = (math.MaxUint32 - polygonHeaderSize) / coordSize
)

// Decode failures, one per check. Wrapped errors carry the polygon
// index and offset; dispatch with errors.Is.
var (
	ErrTruncatedHeader        = errors.New("geodata file too short for header")
	ErrInvalidMagic           = errors.New("geodata header mismatch")
	ErrTruncatedPolygonCount  = errors.New("geodata file too short for polygon count")
	ErrReadFailed             = errors.New("geodata read failed")
	ErrTruncatedPolygonHeader = errors.New("truncated polygon header")
	ErrTruncatedPolygonData   = errors.New("truncated polygon data")
	ErrCorruptPolygonLength   = errors.New("corrupt polygon length")
)

// Dataset is the validated, immutable decoding of one geodata file.
// Polygon records stay packed in a single flat buffer; hit tests walk
// that buffer directly, trusting the bounds proven at decode time.
// A Dataset is safe for concurrent readers once constructed.
type Dataset struct {
	numPolygons uint32
	polygons    []byte    // packed polygon records, the file bytes past the header
	mapping     mmap.MMap // non-nil when polygons is backed by a file mapping
}

// FromBytes validates a complete geodata file image and returns the
// Dataset backed by it. The returned Dataset keeps a reference to
// data; callers must not mutate it afterwards. On any failure no
// Dataset escapes.
func FromBytes(data []byte) (*Dataset, error) {
	if len(data) < len(magic) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedHeader, len(data))
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedPolygonCount, len(data))
	}
	if string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, data[:len(magic)])
	}
	d := &Dataset{numPolygons: binary.LittleEndian.Uint32(data[4:headerSize])}
	if d.numPolygons == 0 {
		// trailing bytes are never consumed for an empty set
		return d, nil
	}
	polygons := data[headerSize:]
	if err := validatePolygons(polygons, d.numPolygons); err != nil {
		return nil, err
	}
	d.polygons = polygons
	return d, nil
}

// validatePolygons makes the single forward pass over the packed
// records, proving every offset in-bounds before it is trusted by
// later hit tests. Arithmetic is widened to uint64 so a hostile
// num_coordinates cannot overflow the record length.
func validatePolygons(buf []byte, numPolygons uint32) error {
	total := uint64(len(buf))
	var offset uint64
	for i := uint32(0); i < numPolygons; i++ {
		if offset+polygonHeaderSize > total {
			return fmt.Errorf("%w: polygon %d at offset %d", ErrTruncatedPolygonHeader, i, offset)
		}
		count := binary.LittleEndian.Uint32(buf[offset:])
		if count > maxCoordinates {
			return fmt.Errorf("%w: polygon %d declares %d coordinates", ErrCorruptPolygonLength, i, count)
		}
		recLen := polygonHeaderSize + uint64(count)*coordSize
		if offset+recLen > total {
			return fmt.Errorf("%w: polygon %d needs %d bytes, %d remain",
				ErrTruncatedPolygonData, i, recLen, total-offset)
		}
		offset += recLen
	}
	return nil
}

// Open reads the geodata file at path into memory and validates it.
func Open(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(data)
}

// OpenMapped validates a read-only memory mapping of the geodata file
// and serves hit tests from it, keeping the resident footprint at the
// pages actually touched. Close unmaps.
func OpenMapped(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap %q: %w", path, err)
	}
	d, err := FromBytes(m)
	if err != nil {
		m.Unmap()
		return nil, err
	}
	d.mapping = m
	return d, nil
}

// Decode validates a geodata stream read to EOF.
func Decode(r io.Reader) (*Dataset, error) {
	var hdr [headerSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	if n < headerSize {
		return FromBytes(hdr[:n]) // short header, FromBytes names the failing check
	}
	if string(hdr[:len(magic)]) != magic || binary.LittleEndian.Uint32(hdr[4:]) == 0 {
		// bad magic or an empty set: never read (or allocate for) a body
		return FromBytes(hdr[:])
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return FromBytes(append(hdr[:], body...))
}

// NumPolygons reports how many polygons the dataset holds.
func (d *Dataset) NumPolygons() int {
	if d == nil {
		return 0
	}
	return int(d.numPolygons)
}

// Contains reports whether any polygon in the dataset contains the
// location. A nil Dataset never contains anything, and queries with
// either coordinate outside [-180, 180] always return false; both are
// defined results, not errors.
func (d *Dataset) Contains(lng, lat float64) bool {
	if d == nil {
		return false
	}
	if lng < -180 || lng > 180 || lat < -180 || lat > 180 {
		return false
	}
	return d.hitTest(lng, lat)
}

// Polygons materializes the dataset as vertex slices. Hit tests never
// need this; it exists for inspection and round-trip testing.
func (d *Dataset) Polygons() []Polygon {
	if d == nil {
		return nil
	}
	polygons := make([]Polygon, 0, d.numPolygons)
	d.visit(func(ring []byte) bool {
		n := len(ring) / coordSize
		poly := make(Polygon, n)
		for i := 0; i < n; i++ {
			poly[i][0], poly[i][1] = coordinateAt(ring, i)
		}
		polygons = append(polygons, poly)
		return true
	})
	return polygons
}

// visit walks the packed records in file order, calling fn with each
// polygon's coordinate bytes until fn returns false. Offsets were
// proven at decode time, so no bounds are rechecked here.
func (d *Dataset) visit(fn func(ring []byte) bool) {
	buf := d.polygons
	offset := 0
	for n := uint32(0); n < d.numPolygons; n++ {
		count := int(binary.LittleEndian.Uint32(buf[offset:]))
		offset += polygonHeaderSize
		ring := buf[offset : offset+count*coordSize]
		offset += count * coordSize
		if !fn(ring) {
			return
		}
	}
}

// Close releases the file mapping when the Dataset came from
// OpenMapped; otherwise it is a no-op and the buffer is left to the
// garbage collector. The Dataset must not be queried after Close.
func (d *Dataset) Close() error {
	if d == nil || d.mapping == nil {
		return nil
	}
	m := d.mapping
	d.mapping = nil
	d.polygons = nil
	d.numPolygons = 0
	return m.Unmap()
}
