package geofence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// the canonical test fixture: a 10x10 square anchored at the origin
	square = Polygon{{0, 0}, {0, 10}, {10, 10}, {10, 0}}

	// a triangle well away from the square
	triangle = Polygon{{-5, -5}, {-1, -5}, {-3, -1}}
)

// header builds the 8 leading bytes by hand for corruption tests
func header(magic string, numPolygons uint32) []byte {
	buf := make([]byte, headerSize)
	copy(buf, magic)
	binary.LittleEndian.PutUint32(buf[4:], numPolygons)
	return buf
}

func TestDecodeFailures(t *testing.T) {
	valid := Marshal([]Polygon{square})

	overflow := header("GEO!", 1)
	overflow = append(overflow, 0xff, 0xff, 0xff, 0xff)

	shortData := header("GEO!", 1)
	shortData = append(shortData, valid[headerSize:headerSize+polygonHeaderSize+coordSize]...)

	secondMissing := append(header("GEO!", 2), valid[headerSize:]...)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedHeader},
		{"short magic", []byte("GEO"), ErrTruncatedHeader},
		{"no polygon count", []byte("GEO!\x01\x00"), ErrTruncatedPolygonCount},
		{"bad magic", header("XEO!", 0), ErrInvalidMagic},
		{"missing polygon header", header("GEO!", 1), ErrTruncatedPolygonHeader},
		{"short polygon header", append(header("GEO!", 1), 0x02, 0x00), ErrTruncatedPolygonHeader},
		{"short polygon data", shortData, ErrTruncatedPolygonData},
		{"second polygon missing", secondMissing, ErrTruncatedPolygonHeader},
		{"overflowing coordinate count", overflow, ErrCorruptPolygonLength},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := FromBytes(tc.data)
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, d)
		})
	}
}

// shrinking a declared coordinate count's buffer by any amount must
// flip a valid file into a truncation failure
func TestTruncationAnywhere(t *testing.T) {
	valid := Marshal([]Polygon{square, triangle})
	for n := headerSize; n < len(valid); n++ {
		_, err := FromBytes(valid[:n])
		if !errors.Is(err, ErrTruncatedPolygonHeader) && !errors.Is(err, ErrTruncatedPolygonData) {
			t.Fatalf("truncation at %d bytes not detected: %v", n, err)
		}
	}
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}

func TestDecode(t *testing.T) {
	d, err := Decode(bytes.NewReader(Marshal([]Polygon{square})))
	require.NoError(t, err)
	assert.Equal(t, 1, d.NumPolygons())
	assert.True(t, d.Contains(5, 5))

	_, err = Decode(bytes.NewReader(header("XEO!", 1)))
	require.ErrorIs(t, err, ErrInvalidMagic)

	_, err = Decode(failReader{})
	require.ErrorIs(t, err, ErrReadFailed)
}

func TestZeroPolygons(t *testing.T) {
	d, err := FromBytes(Marshal(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, d.NumPolygons())
	assert.False(t, d.Contains(0, 0))

	// trailing bytes after a zero count are never consumed
	d, err = FromBytes(append(header("GEO!", 0), 0xde, 0xad))
	require.NoError(t, err)
	assert.False(t, d.Contains(5, 5))
}

func TestSquare(t *testing.T) {
	d, err := FromBytes(Marshal([]Polygon{square}))
	require.NoError(t, err)

	tests := []struct {
		lng, lat float64
		want     bool
	}{
		{5, 5, true},
		{15, 15, false},
		{-1, 5, false},
		{5, 11, false},
		// boundary points follow the half-open interval rule:
		// the left edge is in, the right edge is out
		{0, 5, true},
		{10, 5, false},
		{5, 0, true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, d.Contains(tc.lng, tc.lat), "contains(%v,%v)", tc.lng, tc.lat)
	}
}

func TestQueryClamp(t *testing.T) {
	d, err := FromBytes(Marshal([]Polygon{square}))
	require.NoError(t, err)

	assert.False(t, d.Contains(181, 0))
	assert.False(t, d.Contains(0, -200))
	assert.False(t, d.Contains(-320, -320))
	assert.True(t, d.Contains(5, 5))

	var nothing *Dataset
	assert.False(t, nothing.Contains(5, 5))
	assert.Equal(t, 0, nothing.NumPolygons())
	assert.NoError(t, nothing.Close())
}

func TestIdempotent(t *testing.T) {
	d, err := FromBytes(Marshal([]Polygon{square, triangle}))
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		assert.True(t, d.Contains(5, 5))
		assert.False(t, d.Contains(15, 15))
		assert.True(t, d.Contains(-3, -4))
	}
}

// polygons with no coordinates are legal and never match
func TestEmptyPolygon(t *testing.T) {
	d, err := FromBytes(Marshal([]Polygon{{}, square}))
	require.NoError(t, err)
	assert.Equal(t, 2, d.NumPolygons())
	assert.True(t, d.Contains(5, 5))
	assert.False(t, d.Contains(15, 15))
}

func TestOpen(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "square.geo")
	require.NoError(t, WriteFile(filename, []Polygon{square}))

	now := time.Now()
	d, err := Open(filename)
	require.NoError(t, err)
	t.Logf("loaded %d polygons in %s", d.NumPolygons(), time.Since(now))

	assert.True(t, d.Contains(5, 5))
	assert.NoError(t, d.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no-such-file.geo"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenMapped(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "square.geo")
	require.NoError(t, WriteFile(filename, []Polygon{square, triangle}))

	d, err := OpenMapped(filename)
	require.NoError(t, err)
	assert.Equal(t, 2, d.NumPolygons())
	assert.True(t, d.Contains(5, 5))
	assert.True(t, d.Contains(-3, -4))
	assert.False(t, d.Contains(15, 15))

	require.NoError(t, d.Close())
	// Close is safe to repeat once the mapping is gone
	require.NoError(t, d.Close())
}

func TestOpenMappedCorrupt(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "corrupt.geo")
	require.NoError(t, os.WriteFile(filename, header("GEO!", 3), 0o644))

	_, err := OpenMapped(filename)
	require.ErrorIs(t, err, ErrTruncatedPolygonHeader)
}
