// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package mech

// Class holds what differs between device families when reading a status: the scale of
// the raw battery reading, the discharge curve and how the record is rendered.
type Class struct {
	Name         string
	Scale        float64
	percentage   func(voltage float64) int
	motorInPlace bool
}

// BatteryPercentage returns the battery level for voltage
func (c Class) BatteryPercentage(voltage float64) int {
	if c.percentage == nil {
		return LockCurve.Percentage(voltage)
	}
	return c.percentage(voltage)
}

// Lock is the class of SESAME 2 and SESAME 4 locks
var Lock = Class{
	Name:       "CHSesame2MechStatus",
	Scale:      7.2,
	percentage: LockCurve.Percentage,
}

// Bot is the class of the SESAME bot. The bot reports a motor status in place of the
// position.
var Bot = Class{
	Name:         "CHSesameBotMechStatus",
	Scale:        3.6,
	percentage:   botBatteryPercentage,
	motorInPlace: true,
}
