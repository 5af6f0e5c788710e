// Package mechanics holds the textbook beam formulas the Physics Architect
// shell exposes to its scripting host. Non-positive denominators yield 0
// rather than an error, matching the tolerance of the drawing surface.
package mechanics

// Stress returns axial stress: force / area. Zero when area <= 0.
func Stress(force, area float64) float64 {
	if area <= 0 {
		return 0
	}
	return force / area
}

// Displacement returns axial elongation: force * length / (area * modulus).
// Zero when area or modulus is <= 0.
func Displacement(force, length, area, modulus float64) float64 {
	if area <= 0 || modulus <= 0 {
		return 0
	}
	return (force * length) / (area * modulus)
}
