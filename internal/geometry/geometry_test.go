package geometry

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeworth/server/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func located(id uint, zip string, lat, lon float64) models.Property {
	return models.Property{ID: id, Zip: zip, City: "Austin", Latitude: floatPtr(lat), Longitude: floatPtr(lon)}
}

func TestFeatureCollection(t *testing.T) {
	props := []models.Property{
		located(1, "78701", 30.2672, -97.7431),
		{ID: 2, City: "Nowhere"},
	}

	fc := FeatureCollection(props)
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	point, ok := f.Geometry.(orb.Point)
	require.True(t, ok)
	assert.Equal(t, orb.Point{-97.7431, 30.2672}, point, "geojson uses lon/lat order")
	assert.Equal(t, "Austin", f.Properties["city"])

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"FeatureCollection"`)
}

func TestZipHulls(t *testing.T) {
	props := []models.Property{
		located(1, "78701", 0, 0),
		located(2, "78701", 0, 1),
		located(3, "78701", 1, 1),
		located(4, "78701", 1, 0),
		located(5, "78701", 0.5, 0.5), // interior
		located(6, "78702", 0, 0),
		located(7, "78702", 1, 1),
	}

	hulls := ZipHulls(props)
	require.Len(t, hulls, 1, "zip with two points has no hull")
	assert.Equal(t, "78701", hulls[0].Properties["zip"])
	assert.Equal(t, 5, hulls[0].Properties["point_count"])

	poly, ok := hulls[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	ring := poly[0]
	assert.Len(t, ring, 5, "four corners plus closing point")
	assert.True(t, ring.Closed())
	assert.Equal(t, orb.CCW, ring.Orientation())
}

func TestConvexHullDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		points []orb.Point
	}{
		{name: "empty", points: nil},
		{name: "duplicates", points: []orb.Point{{1, 1}, {1, 1}, {1, 1}}},
		{name: "collinear", points: []orb.Point{{0, 0}, {1, 1}, {2, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, convexHull(tt.points))
		})
	}
}
