package protocol

// Tilt approximates atan2 on the plane spanned by the two accelerometer
// components, scaled so a right angle maps to 2000. It is a five-region
// piecewise rational approximation in integer arithmetic; downstream
// calibration depends on its exact truncation behavior, so the branch
// structure must not be simplified.
func Tilt(z, x int32) int32 {
	switch {
	case z > 0 && -z < x && x < z:
		return 1000 * x / z
	case x > 0 && -x < z && z < x:
		return 2000 - 1000*z/x
	case z < 0 && x > 0 && x < -z:
		return 4000 + 1000*x/z
	case x < 0 && x < z && z < -x:
		return -2000 - 1000*z/x
	case z < 0 && z < x && x < 0:
		return -4000 + 1000*x/z
	default:
		// Near origin or on a quadrant boundary the approximation is
		// undefined; report level.
		return 0
	}
}
