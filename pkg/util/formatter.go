package util

import (
	"fmt"
	"math"
)

// FormatValueFactor scales value by an SI prefix: 45e6 with unit "Pa" gives
// "45.000 MPa".
func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	switch {
	case absValue >= 1e9:
		return fmt.Sprintf("%.3f G%s", value/1e9, unit)
	case absValue >= 1e6:
		return fmt.Sprintf("%.3f M%s", value/1e6, unit)
	case absValue >= 1e3:
		return fmt.Sprintf("%.3f k%s", value/1e3, unit)
	case absValue >= 1 || absValue == 0:
		return fmt.Sprintf("%.3f %s", value, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.3f m%s", value*1e3, unit)
	case absValue >= 1e-6:
		return fmt.Sprintf("%.3f u%s", value*1e6, unit)
	default:
		return fmt.Sprintf("%.3e %s", value, unit)
	}
}

func FormatFrequency(freq float64) string {
	if freq < 0.1 {
		return fmt.Sprintf("%8.4f Hz", freq)
	}
	return fmt.Sprintf("%8.3f Hz", freq)
}

// FormatStrain prints a strain given in percent.
func FormatStrain(strain float64) string {
	if strain != 0 && math.Abs(strain) < 1e-3 {
		return fmt.Sprintf("%9.2e%%", strain)
	}
	return fmt.Sprintf("%9.4f%%", strain)
}

func FormatMagnitude(value float64) string {
	if value >= 1000 || (value < 0.001 && value != 0) {
		return fmt.Sprintf("%8.2e", value) // "1.00e+03" or "5.43e-05"
	}
	return fmt.Sprintf("%8.3g", value) // "   0.732"
}
