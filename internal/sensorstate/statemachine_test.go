package sensorstate

import (
	"testing"
	"time"

	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func testPayload() models.ColdChainPayload {
	return models.ColdChainPayload{
		HighTemp:           true,
		LowTemp:            true,
		NoData:             true,
		ConfirmOk:          true,
		Remind:             true,
		HighTempThreshold:  8.0,
		LowTempThreshold:   2.0,
		NoDataInterval:     1,
		NoDataIntervalUnit: models.UnitHours,
		ReminderInterval:   1,
		ReminderUnit:       models.UnitHours,
	}
}

var sensor = models.Sensor{ID: "sensor-1", Name: "E5:4G", StoreName: "Store A", LocationName: "Fridge 1"}

// S1: Ok -> Ok, no alert.
func TestStep_S1_StaysOk(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	prev := models.SensorState{
		SensorID:       sensor.ID,
		Status:         models.StatusOk,
		StatusStartUTC: now.Add(-time.Minute),
	}
	latest := &models.TemperatureLog{LogDatetime: now, Temperature: f(5.5)}

	next, alert := Step(testPayload(), prev, sensor, now, latest)

	assert.Equal(t, models.StatusOk, next.Status)
	assert.Nil(t, alert)
}

// S2: Ok -> HighTemp, alert High, reminder_number=0.
func TestStep_S2_TransitionsToHigh(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	prev := models.SensorState{
		SensorID:       sensor.ID,
		Status:         models.StatusOk,
		StatusStartUTC: now.Add(-time.Minute),
	}
	latest := &models.TemperatureLog{LogDatetime: now, Temperature: f(9.0)}

	next, alert := Step(testPayload(), prev, sensor, now, latest)

	require.NotNil(t, alert)
	assert.Equal(t, models.StatusHighTemp, next.Status)
	assert.Equal(t, models.AlertHigh, alert.Type)
	assert.Equal(t, 0, alert.ReminderNumber)
	assert.Equal(t, 0, next.ReminderNumber)
	assert.Equal(t, now, next.StatusStartUTC)
}

// S3: HighTemp reminder fires after reminder interval elapses.
func TestStep_S3_ReminderFires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lastNotif := now.Add(-(time.Hour + time.Minute))
	prev := models.SensorState{
		SensorID:            sensor.ID,
		Status:              models.StatusHighTemp,
		StatusStartUTC:      lastNotif,
		LastNotificationUTC: &lastNotif,
		ReminderNumber:      0,
	}
	latest := &models.TemperatureLog{LogDatetime: now, Temperature: f(9.0)}

	next, alert := Step(testPayload(), prev, sensor, now, latest)

	require.NotNil(t, alert)
	assert.Equal(t, models.StatusHighTemp, next.Status)
	assert.Equal(t, models.AlertHigh, alert.Type)
	assert.Equal(t, 1, alert.ReminderNumber)
	assert.Equal(t, 1, next.ReminderNumber)
	require.NotNil(t, next.LastNotificationUTC)
	assert.Equal(t, now, *next.LastNotificationUTC)
}

// S4: reminder interval not yet elapsed -> no alert.
func TestStep_S4_ReminderNotYetDue(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	statusStart := now.Add(-(time.Hour + 30*time.Minute))
	lastNotif := now.Add(-59 * time.Minute)
	prev := models.SensorState{
		SensorID:            sensor.ID,
		Status:              models.StatusHighTemp,
		StatusStartUTC:      statusStart,
		LastNotificationUTC: &lastNotif,
		ReminderNumber:      1,
	}
	latest := &models.TemperatureLog{LogDatetime: now, Temperature: f(9.0)}

	next, alert := Step(testPayload(), prev, sensor, now, latest)

	assert.Nil(t, alert)
	assert.Equal(t, models.StatusHighTemp, next.Status)
	assert.Equal(t, 1, next.ReminderNumber)
	assert.Equal(t, statusStart, next.StatusStartUTC)
}

// S5: HighTemp -> Ok, confirm_ok alert.
func TestStep_S5_RecoversToOk(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	prev := models.SensorState{
		SensorID:       sensor.ID,
		Status:         models.StatusHighTemp,
		StatusStartUTC: now.Add(-2 * time.Hour),
	}
	latest := &models.TemperatureLog{LogDatetime: now, Temperature: f(5.5)}

	next, alert := Step(testPayload(), prev, sensor, now, latest)

	require.NotNil(t, alert)
	assert.Equal(t, models.StatusOk, next.Status)
	assert.Equal(t, models.AlertOk, alert.Type)
	assert.Equal(t, 0, next.ReminderNumber)
}

func TestStep_NoReminderWhenDisabled(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := testPayload()
	payload.Remind = false
	lastNotif := now.Add(-10 * time.Hour)
	prev := models.SensorState{
		SensorID:            sensor.ID,
		Status:              models.StatusHighTemp,
		StatusStartUTC:      lastNotif,
		LastNotificationUTC: &lastNotif,
	}
	latest := &models.TemperatureLog{LogDatetime: now, Temperature: f(9.0)}

	_, alert := Step(payload, prev, sensor, now, latest)

	assert.Nil(t, alert)
}

func TestStep_OkToOk_NoConfirmNeeded(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	prev := models.SensorState{Status: models.StatusOk, StatusStartUTC: now.Add(-time.Hour)}
	latest := &models.TemperatureLog{LogDatetime: now, Temperature: f(5.0)}

	_, alert := Step(testPayload(), prev, sensor, now, latest)

	assert.Nil(t, alert)
}

func TestStep_NoDataTransitionRespectsFlag(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := testPayload()
	payload.NoData = false
	prev := models.SensorState{Status: models.StatusOk, StatusStartUTC: now.Add(-time.Hour)}

	next, alert := Step(payload, prev, sensor, now, nil)

	assert.Equal(t, models.StatusNoData, next.Status)
	assert.Nil(t, alert)
}
