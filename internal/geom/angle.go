package geom

import "math"

// NormalizeAngle maps x into (-π, π].
func NormalizeAngle(x float64) float64 {
	x = math.Mod(x, 2*math.Pi)
	switch {
	case x > math.Pi:
		x -= 2 * math.Pi
	case x <= -math.Pi:
		x += 2 * math.Pi
	}
	return x
}
