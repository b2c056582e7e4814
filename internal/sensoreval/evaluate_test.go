package sensoreval

import (
	"testing"
	"time"

	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestEvaluate_NoReading(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	status := Evaluate(now, nil, 8.0, 2.0, time.Hour)
	assert.Equal(t, models.StatusNoData, status)
}

func TestEvaluate_NullTemperature(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	log := &models.TemperatureLog{LogDatetime: now}
	status := Evaluate(now, log, 8.0, 2.0, time.Hour)
	assert.Equal(t, models.StatusNoData, status)
}

func TestEvaluate_StaleReading(t *testing.T) {
	now := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	log := &models.TemperatureLog{LogDatetime: now.Add(-90 * time.Minute), Temperature: f(5.0)}
	status := Evaluate(now, log, 8.0, 2.0, time.Hour)
	assert.Equal(t, models.StatusNoData, status)
}

func TestEvaluate_TruthTable(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		temp float64
		want models.SensorStatus
	}{
		{"below low", 1.99, models.StatusLowTemp},
		{"at low boundary", 2.0, models.StatusOk},
		{"mid range", 5.5, models.StatusOk},
		{"at high boundary", 8.0, models.StatusOk},
		{"above high", 8.01, models.StatusHighTemp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log := &models.TemperatureLog{LogDatetime: now, Temperature: f(tc.temp)}
			status := Evaluate(now, log, 8.0, 2.0, time.Hour)
			assert.Equal(t, tc.want, status)
		})
	}
}
