package sim

import (
	"strconv"

	"github.com/Jingwu-01/Robotaxi-backend/src/scenario"

	"go.uber.org/zap"
)

// Battery device parameter keys and the charging model constants.
const (
	batteryActualParam = "device.battery.actualBatteryCapacity"
	batteryMaxParam    = "device.battery.maximumBatteryCapacity"

	initialBatteryCapacity = "500"

	chargeRadius = 5.0  // meters along the lane
	chargeRate   = 50.0 // capacity gained per step at a charger
	drainRate    = 1.0  // capacity lost per step while driving
)

// applyCharging tops up every taxi standing within chargeRadius of a
// charger on the same lane
func applyCharging(c TraCI, taxiIDs []string, chargers []scenario.Charger, logger *zap.SugaredLogger) {
	for _, taxiID := range taxiIDs {
		laneID, err := c.LaneID(taxiID)
		if err != nil {
			logger.Debugf("Error while simulating charging for taxi %s: %v", taxiID, err)
			continue
		}
		pos, err := c.LanePosition(taxiID)
		if err != nil {
			logger.Debugf("Error while simulating charging for taxi %s: %v", taxiID, err)
			continue
		}
		for _, ch := range chargers {
			if laneID != ch.LaneID {
				continue
			}
			dist := pos - ch.Position
			if dist < 0 {
				dist = -dist
			}
			if dist >= chargeRadius {
				continue
			}

			current, err := batteryParam(c, taxiID, batteryActualParam)
			if err != nil {
				logger.Debugf("Error while simulating charging for taxi %s: %v", taxiID, err)
				continue
			}
			max, err := batteryParam(c, taxiID, batteryMaxParam)
			if err != nil {
				logger.Debugf("Error while simulating charging for taxi %s: %v", taxiID, err)
				continue
			}
			next := current + chargeRate
			if next > max {
				next = max
			}
			if err := c.SetVehicleParameter(taxiID, batteryActualParam, formatBattery(next)); err != nil {
				logger.Debugf("Error while simulating charging for taxi %s: %v", taxiID, err)
				continue
			}
			logger.Infof("Taxi %s is charging at %s. New capacity: %v", taxiID, ch.ID, next)
		}
	}
}

// applyBatteryDrain drains every taxi one capacity unit per step,
// floored at zero
func applyBatteryDrain(c TraCI, taxiIDs []string, logger *zap.SugaredLogger) {
	for _, taxiID := range taxiIDs {
		current, err := batteryParam(c, taxiID, batteryActualParam)
		if err != nil {
			logger.Debugf("Error while simulating energy consumption for taxi %s: %v", taxiID, err)
			continue
		}
		next := current - drainRate
		if next < 0 {
			next = 0
		}
		if err := c.SetVehicleParameter(taxiID, batteryActualParam, formatBattery(next)); err != nil {
			logger.Debugf("Error while simulating energy consumption for taxi %s: %v", taxiID, err)
		}
	}
}

func batteryParam(c TraCI, vehID, key string) (float64, error) {
	raw, err := c.VehicleParameter(vehID, key)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(raw, 64)
}

func formatBattery(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
