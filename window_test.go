package satimg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridReader serves a synthetic row-major grid where every sample encodes its
// absolute position, so misplaced chunk reads are detectable.
type gridReader struct {
	height int
	width  int
	fail   error
	reads  []Window
}

func (g *gridReader) ReadBlock(band int, w Window, buf []float64) error {
	if g.fail != nil {
		return g.fail
	}
	g.reads = append(g.reads, w)
	for i := 0; i < w.Height; i++ {
		for j := 0; j < w.Width; j++ {
			buf[i*w.Width+j] = float64((w.Row+i)*g.width + w.Col + j)
		}
	}
	return nil
}

func TestWindowClip(t *testing.T) {
	w := Window{Row: 900, Col: 600, Height: 512, Width: 512}.Clip(1000, 1000)
	assert.Equal(t, Window{Row: 900, Col: 600, Height: 100, Width: 400}, w)

	full := Window{Row: 0, Col: 0, Height: 512, Width: 512}.Clip(1024, 1024)
	assert.Equal(t, 512, full.Height)
	assert.Equal(t, 512, full.Width)
}

func TestReadWindowChunkedSingleShot(t *testing.T) {
	r := &gridReader{height: 100, width: 50}
	w := Window{Row: 10, Col: 5, Height: 20, Width: 30}
	got, err := ReadWindowChunked(r, 1, w, 1<<20, 7)
	require.NoError(t, err)
	require.Len(t, r.reads, 1, "below budget must be one read")
	assert.Equal(t, w, r.reads[0])
	assert.Equal(t, float64(10*50+5), got[0])
	assert.Equal(t, float64(29*50+34), got[len(got)-1])
}

func TestReadWindowChunkedEqualsSingleShot(t *testing.T) {
	for _, chunkHeight := range []int{1, 3, 7, 20, 33, 100} {
		single := &gridReader{height: 100, width: 40}
		chunked := &gridReader{height: 100, width: 40}
		w := Window{Row: 2, Col: 4, Height: 97, Width: 30}

		want, err := ReadWindowChunked(single, 1, w, 1<<30, chunkHeight)
		require.NoError(t, err)
		// A one-byte budget forces chunking for any window.
		got, err := ReadWindowChunked(chunked, 1, w, 1, chunkHeight)
		require.NoError(t, err)
		assert.Equal(t, want, got, "chunkHeight=%d", chunkHeight)

		rows := 0
		for _, sub := range chunked.reads {
			assert.LessOrEqual(t, sub.Height, chunkHeight)
			assert.Equal(t, w.Col, sub.Col)
			assert.Equal(t, w.Width, sub.Width)
			rows += sub.Height
		}
		assert.Equal(t, w.Height, rows, "chunk rows must cover the window exactly once")
	}
}

func TestReadWindowChunkedPropagatesIOError(t *testing.T) {
	boom := errors.New("read failed")
	r := &gridReader{height: 10, width: 10, fail: boom}
	_, err := ReadWindowChunked(r, 1, Window{Height: 10, Width: 10}, 1, 3)
	assert.ErrorIs(t, err, boom)
}

func TestDefaultWindowBudget(t *testing.T) {
	budget := DefaultWindowBudget()
	assert.Greater(t, budget, int64(0))
	assert.LessOrEqual(t, budget, int64(MAX_WINDOW_BYTES))
}
