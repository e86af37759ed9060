package satimg

import (
	"github.com/GabeTsai/sat-img-utils/log"

	"github.com/pbnjay/memory"
	"go.uber.org/zap"
)

// Window is a rectangular sub-region of a raster, addressed by pixel offsets
// from the top-left corner.
type Window struct {
	Row    int
	Col    int
	Height int
	Width  int
}

func (w Window) Pixels() int64 {
	return int64(w.Height) * int64(w.Width)
}

// Clip shrinks the window so it fits a raster of the given dimensions. Only
// the trailing edges move; offsets are preserved.
func (w Window) Clip(height, width int) Window {
	if w.Row+w.Height > height {
		w.Height = height - w.Row
	}
	if w.Col+w.Width > width {
		w.Width = width - w.Col
	}
	if w.Height < 0 {
		w.Height = 0
	}
	if w.Width < 0 {
		w.Width = 0
	}
	return w
}

func (w Window) valid(height, width int) bool {
	return w.Row >= 0 && w.Col >= 0 && w.Height > 0 && w.Width > 0 &&
		w.Row < height && w.Col < width
}

// BandReader is the read contract of the chunked window reader. Raster
// satisfies it; tests substitute synthetic grids.
type BandReader interface {
	// ReadBlock fills buf (length w.Height*w.Width, row-major) with the
	// samples of band (1-based) inside w.
	ReadBlock(band int, w Window, buf []float64) error
}

const bytesPerSample = 8 // samples are held as float64 once read

// DefaultWindowBudget is the byte budget above which window reads are
// chunked: MAX_WINDOW_BYTES, or an eighth of physical memory on small hosts.
func DefaultWindowBudget() int64 {
	budget := int64(MAX_WINDOW_BYTES)
	if phys := int64(memory.TotalMemory() / 8); phys > 0 && phys < budget {
		budget = phys
	}
	return budget
}

// ReadWindowChunked reads one band of a window, splitting the read into
// row-chunks of chunkHeight when the estimated buffer size exceeds maxBytes.
// Chunks land directly in the result slice, so peak transient memory stays
// within one chunk beyond the returned buffer. I/O errors propagate unchanged.
func ReadWindowChunked(r BandReader, band int, w Window, maxBytes int64, chunkHeight int) ([]float64, error) {
	out := make([]float64, w.Pixels())
	if err := ReadWindowChunkedInto(r, band, w, out, maxBytes, chunkHeight); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadWindowChunkedInto is ReadWindowChunked reading into a caller-owned
// buffer of length w.Height*w.Width.
func ReadWindowChunkedInto(r BandReader, band int, w Window, out []float64, maxBytes int64, chunkHeight int) error {
	if maxBytes <= 0 {
		maxBytes = DefaultWindowBudget()
	}
	if chunkHeight <= 0 {
		chunkHeight = CHUNK_HEIGHT
	}
	est := w.Pixels() * bytesPerSample
	if est <= maxBytes {
		return r.ReadBlock(band, w, out)
	}
	log.Info("large window, reading in chunks",
		zap.Int64("estBytes", est), zap.Int64("maxBytes", maxBytes), zap.Int("chunkHeight", chunkHeight))
	for rowStart := 0; rowStart < w.Height; rowStart += chunkHeight {
		sub := Window{
			Row:    w.Row + rowStart,
			Col:    w.Col,
			Height: min(chunkHeight, w.Height-rowStart),
			Width:  w.Width,
		}
		buf := out[int64(rowStart)*int64(w.Width) : (int64(rowStart)+int64(sub.Height))*int64(w.Width)]
		if err := r.ReadBlock(band, sub, buf); err != nil {
			return err
		}
	}
	return nil
}
