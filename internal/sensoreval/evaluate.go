// Package sensoreval implements the sensor state evaluator (spec §4.D): a
// pure function from the latest reading, current time, thresholds, and
// max-age to a SensorStatus. It never touches the database or clock beyond
// the arguments it is given.
package sensoreval

import (
	"time"

	"github.com/meetsmatch/notifyengine/internal/models"
)

// Evaluate implements spec §4.D exactly:
//  1. no reading -> NoData
//  2. reading with no temperature -> NoData
//  3. reading older than maxAge -> NoData
//  4. otherwise compare against [low, high] inclusive bounds
func Evaluate(nowLocal time.Time, latest *models.TemperatureLog, high, low float64, maxAge time.Duration) models.SensorStatus {
	if latest == nil {
		return models.StatusNoData
	}
	if latest.Temperature == nil {
		return models.StatusNoData
	}
	if nowLocal.Sub(latest.LogDatetime) > maxAge {
		return models.StatusNoData
	}

	t := *latest.Temperature
	switch {
	case t > high:
		return models.StatusHighTemp
	case t < low:
		return models.StatusLowTemp
	default:
		return models.StatusOk
	}
}
