package satimg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointsToWktClosedRing(t *testing.T) {
	wkt := PointsToWkt(100, 110, 30, 40)
	assert.True(t, strings.HasPrefix(wkt, "POLYGON(("))
	assert.Contains(t, wkt, "100.000000 30.000000")
	assert.Contains(t, wkt, "110.000000 40.000000")
	first := wkt[strings.Index(wkt, "((")+2 : strings.Index(wkt, ",")]
	assert.True(t, strings.HasSuffix(wkt, first+"))"), "ring must close on its first point")
}

func TestBoundsWktNorthUp(t *testing.T) {
	r := &Raster{gt: []float64{100, 1, 0, 200, 0, -1}, width: 10, height: 20}
	assert.Equal(t, SpanToWkt([4]float64{100, 110, 180, 200}), r.BoundsWkt())
}

func TestBoundsWktRotated(t *testing.T) {
	r := &Raster{gt: []float64{0, 1, 0.5, 0, 0.5, -1}, width: 10, height: 10}
	wkt := r.BoundsWkt()
	assert.True(t, strings.HasPrefix(wkt, "POLYGON(("))
	assert.Contains(t, wkt, "0.000000 0.000000", "origin corner survives on sheared grids")
	assert.Contains(t, wkt, "15.000000 -5.000000", "far corner tracks both shear terms")
}
