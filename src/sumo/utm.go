package sumo

import "math"

// WGS84 ellipsoid
const (
	wgs84A = 6378137.0
	wgs84F = 1.0 / 298.257223563
	utmK0  = 0.9996
	falseE = 500000.0
	falseN = 10000000.0
)

// UTMZone converts universal transverse Mercator coordinates in a fixed
// zone back to geographic WGS84 coordinates. The Houston network ships
// in EPSG:32615 (zone 15, northern hemisphere); the inverse projection
// here is the standard USGS series expansion.
type UTMZone struct {
	Zone  int
	South bool
}

// ToWGS84 converts an easting/northing pair to (longitude, latitude) in
// degrees.
func (z UTMZone) ToWGS84(easting, northing float64) (lon, lat float64) {
	e2 := wgs84F * (2 - wgs84F)
	ep2 := e2 / (1 - e2)

	x := easting - falseE
	y := northing
	if z.South {
		y -= falseN
	}

	m := y / utmK0
	mu := m / (wgs84A * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := wgs84A / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := wgs84A * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := x / (n1 * utmK0)

	latRad := phi1 - (n1*tanPhi1/r1)*
		(d*d/2-
			(5+3*t1+10*c1-4*c1*c1-9*ep2)*d*d*d*d/24+
			(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d*d*d*d*d*d/720)

	lonRad := (d -
		(1+2*t1+c1)*d*d*d/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d*d*d*d*d/120) / cosPhi1

	lon0 := float64((z.Zone-1)*6-180+3) * math.Pi / 180

	lat = latRad * 180 / math.Pi
	lon = (lon0 + lonRad) * 180 / math.Pi
	return lon, lat
}
