package blight

import "math"

// WeightedOffset draws a random 3D offset within maxRadius, biased toward
// the center: d = r*(1-sqrt(u)) puts roughly three quarters of the mass in
// the inner quarter of the radius, which is what makes growth fill from
// the inside out instead of stippling the rim. Azimuth is uniform over the
// full circle, polar uniform over [-90,90] degrees, and components are
// truncated to ints.
func WeightedOffset(rng RandomSource, maxRadius float64) Vec3i {
	u := rng.UniformFloat()
	d := maxRadius * (1 - math.Sqrt(u))

	azimuth := rng.UniformFloat() * 2 * math.Pi
	polar := (rng.UniformFloat() - 0.5) * math.Pi

	dx := d * math.Cos(polar) * math.Cos(azimuth)
	dy := d * math.Sin(polar)
	dz := d * math.Cos(polar) * math.Sin(azimuth)

	return Vec3i{X: int(dx), Y: int(dy), Z: int(dz)}
}
