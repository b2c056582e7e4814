// Package sensorstate implements the sensor state machine (spec §4.E): from
// a previous stored state, a freshly-evaluated status, the owning config,
// and the current time, it produces the next state to persist and an
// optional alert to enqueue.
package sensorstate

import (
	"fmt"
	"time"

	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/sensoreval"
)

// Step implements spec §4.E. now is used both as the "local" clock for
// evaluate and as the UTC clock for status_start_utc/last_notification_utc,
// per §4.F's note that now_local == now_utc unless explicitly re-based.
func Step(payload models.ColdChainPayload, prev models.SensorState, sensor models.Sensor, now time.Time, latest *models.TemperatureLog) (models.SensorState, *models.Alert) {
	newStatus := sensoreval.Evaluate(now, latest, payload.HighTempThreshold, payload.LowTempThreshold, payload.NoDataDuration())

	next := prev
	next.SensorID = sensor.ID
	next.Status = newStatus
	next.TimestampLocaltime = now
	if latest != nil {
		next.TimestampLocaltime = latest.LogDatetime
		next.Temperature = latest.Temperature
	} else {
		next.Temperature = nil
	}

	if newStatus != prev.Status {
		return transition(payload, prev, next, sensor, now, newStatus)
	}
	return noTransition(payload, prev, next, sensor, now, newStatus)
}

func transition(payload models.ColdChainPayload, prev, next models.SensorState, sensor models.Sensor, now time.Time, newStatus models.SensorStatus) (models.SensorState, *models.Alert) {
	next.StatusStartUTC = now
	next.ReminderNumber = 0

	emit := shouldEmitOnTransition(payload, prev.Status, newStatus)
	if !emit {
		return next, nil
	}

	next.LastNotificationUTC = &now
	alert := buildAlert(sensor, next, now, alertTypeFor(newStatus), 0)
	return next, &alert
}

func shouldEmitOnTransition(payload models.ColdChainPayload, prevStatus, newStatus models.SensorStatus) bool {
	switch newStatus {
	case models.StatusHighTemp:
		return payload.HighTemp
	case models.StatusLowTemp:
		return payload.LowTemp
	case models.StatusNoData:
		return payload.NoData
	case models.StatusOk:
		if !payload.ConfirmOk {
			return false
		}
		return prevStatus == models.StatusHighTemp || prevStatus == models.StatusLowTemp || prevStatus == models.StatusNoData
	default:
		return false
	}
}

func noTransition(payload models.ColdChainPayload, prev, next models.SensorState, sensor models.Sensor, now time.Time, status models.SensorStatus) (models.SensorState, *models.Alert) {
	next.StatusStartUTC = prev.StatusStartUTC
	next.ReminderNumber = prev.ReminderNumber
	next.LastNotificationUTC = prev.LastNotificationUTC

	if !isRemindable(status) {
		return next, nil
	}
	if !payload.Remind {
		return next, nil
	}

	due := prev.LastNotificationUTC == nil || now.Sub(*prev.LastNotificationUTC) >= payload.ReminderDuration()
	if !due {
		return next, nil
	}

	next.ReminderNumber = prev.ReminderNumber + 1
	next.LastNotificationUTC = &now
	alert := buildAlert(sensor, next, now, alertTypeFor(status), next.ReminderNumber)
	return next, &alert
}

func isRemindable(status models.SensorStatus) bool {
	return status == models.StatusHighTemp || status == models.StatusLowTemp || status == models.StatusNoData
}

func alertTypeFor(status models.SensorStatus) models.AlertType {
	switch status {
	case models.StatusHighTemp:
		return models.AlertHigh
	case models.StatusLowTemp:
		return models.AlertLow
	case models.StatusNoData:
		return models.AlertNoData
	default:
		return models.AlertOk
	}
}

func buildAlert(sensor models.Sensor, state models.SensorState, now time.Time, alertType models.AlertType, reminderNumber int) models.Alert {
	dataAge := now.Sub(state.TimestampLocaltime)
	temp := "n/a"
	if state.Temperature != nil {
		temp = fmt.Sprintf("%.2f", *state.Temperature)
	}
	return models.Alert{
		SensorID:       sensor.ID,
		SensorName:     sensor.Name,
		StoreName:      sensor.StoreName,
		LocationName:   sensor.LocationName,
		Datetime:       now,
		DataAge:        formatAge(dataAge),
		Temperature:    temp,
		Type:           alertType,
		ReminderNumber: reminderNumber,
	}
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Round(time.Minute).Minutes())
	return fmt.Sprintf("%d minutes", minutes)
}
