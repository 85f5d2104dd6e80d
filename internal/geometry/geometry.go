// Package geometry renders stored properties as GeoJSON.
package geometry

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"homeworth/server/internal/models"
)

// FeatureCollection returns one Point feature per property with coordinates. Properties
// without a location are left out.
func FeatureCollection(properties []models.Property) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range properties {
		p := &properties[i]
		point, ok := location(p)
		if !ok {
			continue
		}

		feature := geojson.NewFeature(point)
		feature.ID = p.ID
		feature.Properties = geojson.Properties{
			"id":            p.ID,
			"street":        p.Street,
			"city":          p.City,
			"state":         p.State,
			"zip":           p.Zip,
			"property_type": p.PropertyType,
			"source_url":    p.SourceURL,
		}
		if p.Bedrooms != nil {
			feature.Properties["bedrooms"] = *p.Bedrooms
		}
		if p.SquareFootage != nil {
			feature.Properties["square_footage"] = *p.SquareFootage
		}
		fc.Append(feature)
	}
	return fc
}

// ZipHulls groups located properties by zip code and returns the convex hull of each
// group with at least three distinct points, sorted by zip.
func ZipHulls(properties []models.Property) []*geojson.Feature {
	groups := make(map[string][]orb.Point)
	for i := range properties {
		p := &properties[i]
		point, ok := location(p)
		if !ok || p.Zip == "" {
			continue
		}
		groups[p.Zip] = append(groups[p.Zip], point)
	}

	zips := make([]string, 0, len(groups))
	for zip := range groups {
		zips = append(zips, zip)
	}
	sort.Strings(zips)

	features := make([]*geojson.Feature, 0, len(zips))
	for _, zip := range zips {
		hull := convexHull(groups[zip])
		if hull == nil {
			continue
		}
		feature := geojson.NewFeature(orb.Polygon{hull})
		feature.Properties = geojson.Properties{
			"zip":         zip,
			"point_count": len(groups[zip]),
			"hull_type":   "convex",
		}
		features = append(features, feature)
	}
	return features
}

func location(p *models.Property) (orb.Point, bool) {
	if p.Latitude == nil || p.Longitude == nil {
		return orb.Point{}, false
	}
	return orb.Point{*p.Longitude, *p.Latitude}, true
}

// convexHull computes a counter-clockwise closed ring with Andrew's monotone chain.
// Fewer than three non-collinear points yield nil.
func convexHull(points []orb.Point) orb.Ring {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	unique := pts[:0]
	for i, p := range pts {
		if i == 0 || !p.Equal(pts[i-1]) {
			unique = append(unique, p)
		}
	}
	if len(unique) < 3 {
		return nil
	}

	hull := make([]orb.Point, 0, 2*len(unique))
	for _, p := range unique {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(unique) - 2; i >= 0; i-- {
		p := unique[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// hull now ends with its first point, so it is already closed
	if len(hull) < 4 {
		return nil
	}
	return orb.Ring(hull)
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}
