// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package mech

// Curve maps a battery voltage to a percentage. Voltages are ordered from full to empty.
type Curve struct {
	Voltages    []float64
	Percentages []float64
}

var percentages = []float64{100.0, 50.0, 40.0, 32.0, 21.0, 13.0, 10.0, 7.0, 3.0, 0.0}

// LockCurve is the discharge curve of the 6V battery pack of the locks
var LockCurve = Curve{
	Voltages:    []float64{6.0, 5.8, 5.7, 5.6, 5.4, 5.2, 5.1, 5.0, 4.8, 4.6},
	Percentages: percentages,
}

// BotCurve is the discharge curve of the 3V cell of the bot
var BotCurve = Curve{
	Voltages:    []float64{3.0, 2.9, 2.85, 2.8, 2.7, 2.6, 2.55, 2.5, 2.4, 2.3},
	Percentages: percentages,
}

// Percentage interpolates linearly between the two neighbouring points of the curve and
// truncates. Readings at or above the first point are 100, at or below the last point 0.
func (c Curve) Percentage(voltage float64) int {
	n := len(c.Voltages)
	if voltage >= c.Voltages[0] {
		return int(c.Percentages[0])
	}
	if voltage <= c.Voltages[n-1] {
		return int(c.Percentages[n-1])
	}
	for i := 0; i < n-1; i++ {
		upper, lower := c.Voltages[i], c.Voltages[i+1]
		if voltage > upper || voltage <= lower {
			continue
		}
		f := (voltage - lower) / (upper - lower)
		pLower, pUpper := c.Percentages[i+1], c.Percentages[i]
		return int(pLower + f*(pUpper-pLower))
	}
	return 0
}

// botBatteryPercentage reads a bot voltage. The Web API reports bots on the 6V scale, so
// anything above 4.5V is read with the lock curve.
func botBatteryPercentage(voltage float64) int {
	if voltage > 4.5 {
		return LockCurve.Percentage(voltage)
	}
	return BotCurve.Percentage(voltage)
}
