// Package models holds the notification engine's core data model (spec §3).
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ConfigKind distinguishes the two families of NotificationConfig payload.
type ConfigKind string

const (
	ConfigKindColdChain  ConfigKind = "ColdChain"
	ConfigKindScheduled  ConfigKind = "Scheduled"
)

// ConfigStatus is the enable/disable toggle for a NotificationConfig.
type ConfigStatus string

const (
	ConfigEnabled  ConfigStatus = "Enabled"
	ConfigDisabled ConfigStatus = "Disabled"
)

// NotificationConfig is the central configuration entity (spec §3).
type NotificationConfig struct {
	ID                string
	Title             string
	Kind              ConfigKind
	Status            ConfigStatus
	Payload           JSONPayload
	Parameters        JSONPayload // array of {name: value} maps
	RecipientIDs      []string
	RecipientListIDs  []string
	SQLRecipientListIDs []string
	LastRunUTC        time.Time
	NextDueUTC        *time.Time
	Remind            bool
}

func (c *NotificationConfig) Enabled() bool {
	return c.Status == ConfigEnabled
}

// DurationUnit is the unit attached to an interval count in a ColdChain
// payload (no_data_interval / reminder_interval).
type DurationUnit string

const (
	UnitSeconds DurationUnit = "Seconds"
	UnitMinutes DurationUnit = "Minutes"
	UnitHours   DurationUnit = "Hours"
	UnitDays    DurationUnit = "Days"
)

// Duration converts an integer count and unit into a time.Duration. The
// unit is matched case-insensitively, so the lowercase wire values
// ("minutes", "hours", ...) are accepted; an unknown unit counts as hours.
func (u DurationUnit) Duration(count int) time.Duration {
	n := time.Duration(count)
	switch {
	case strings.EqualFold(string(u), string(UnitSeconds)):
		return n * time.Second
	case strings.EqualFold(string(u), string(UnitMinutes)):
		return n * time.Minute
	case strings.EqualFold(string(u), string(UnitDays)):
		return n * 24 * time.Hour
	default:
		return n * time.Hour
	}
}

// ColdChainPayload is the parsed configuration payload for a ColdChain
// NotificationConfig (spec §3, wire shape in §6).
type ColdChainPayload struct {
	HighTemp           bool         `json:"highTemp"`
	LowTemp            bool         `json:"lowTemp"`
	NoData             bool         `json:"noData"`
	ConfirmOk          bool         `json:"confirmOk"`
	Remind             bool         `json:"remind"`
	HighTempThreshold  float64      `json:"highTempThreshold"`
	LowTempThreshold   float64      `json:"lowTempThreshold"`
	NoDataInterval     int          `json:"noDataInterval"`
	NoDataIntervalUnit DurationUnit `json:"noDataIntervalUnits"`
	ReminderInterval   int          `json:"reminderInterval"`
	ReminderUnit       DurationUnit `json:"reminderUnits"`
	SensorIDs          []string     `json:"sensorIds"`
}

// DefaultColdChainPayload returns the spec §6 defaults before unmarshalling
// overrides them.
func DefaultColdChainPayload() ColdChainPayload {
	return ColdChainPayload{
		HighTempThreshold:  8.0,
		LowTempThreshold:   2.0,
		NoDataInterval:     1,
		NoDataIntervalUnit: UnitHours,
		ReminderInterval:   15,
		ReminderUnit:       UnitMinutes,
	}
}

// ParseColdChainPayload unmarshals raw JSON onto the spec §6 defaults.
func ParseColdChainPayload(raw []byte) (ColdChainPayload, error) {
	p := DefaultColdChainPayload()
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return ColdChainPayload{}, fmt.Errorf("parse coldchain payload: %w", err)
	}
	if p.NoDataIntervalUnit == "" {
		p.NoDataIntervalUnit = UnitHours
	}
	if p.ReminderUnit == "" {
		p.ReminderUnit = UnitMinutes
	}
	return p, nil
}

func (p ColdChainPayload) NoDataDuration() time.Duration {
	return p.NoDataIntervalUnit.Duration(p.NoDataInterval)
}

func (p ColdChainPayload) ReminderDuration() time.Duration {
	return p.ReminderUnit.Duration(p.ReminderInterval)
}

// ScheduleFrequency is the recurrence cadence of a ScheduledPayload.
type ScheduleFrequency string

const (
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// ScheduledPayload is the parsed configuration payload for a Scheduled
// NotificationConfig (spec §3, wire shape in §6).
type ScheduledPayload struct {
	SubjectTemplate      string            `json:"subjectTemplate"`
	BodyTemplate         string            `json:"bodyTemplate"`
	ScheduleFrequency    ScheduleFrequency `json:"scheduleFrequency"`
	ScheduleStartTimeUTC time.Time         `json:"scheduleStartTime"`
	NotificationQueryIDs []string          `json:"notificationQueryIds"`
	Conditional          bool              `json:"conditional"`
	ConditionTemplate    string            `json:"conditionTemplate"`
}

func ParseScheduledPayload(raw []byte) (ScheduledPayload, error) {
	var p ScheduledPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ScheduledPayload{}, fmt.Errorf("parse scheduled payload: %w", err)
	}
	return p, nil
}

// Sensor is external, read-only metadata about a cold-chain sensor.
type Sensor struct {
	ID            string
	Name          string
	StoreName     string
	LocationName  string
	BatteryLevel  *float64
}

// TemperatureLog is an external, read-only sensor reading.
type TemperatureLog struct {
	ID          string
	SensorID    string
	LogDatetime time.Time
	Temperature *float64
}

// SensorStatus is the evaluated/persisted status of a sensor (spec §4.D/E).
type SensorStatus string

const (
	StatusOk       SensorStatus = "Ok"
	StatusLowTemp  SensorStatus = "LowTemp"
	StatusHighTemp SensorStatus = "HighTemp"
	StatusNoData   SensorStatus = "NoData"
)

// SensorState is the per-sensor persisted state, keyed by
// (config_id, sensor_id) and stored as JSON in the plugin KV store.
type SensorState struct {
	SensorID            string       `json:"sensor_id"`
	Status              SensorStatus `json:"status"`
	TimestampLocaltime  time.Time    `json:"timestamp_localtime"`
	Temperature         *float64     `json:"temperature,omitempty"`
	StatusStartUTC      time.Time    `json:"status_start_utc"`
	LastNotificationUTC *time.Time   `json:"last_notification_utc,omitempty"`
	ReminderNumber      int          `json:"reminder_number"`
}

// DefaultSensorState is substituted when no prior state exists for a
// (config_id, sensor_id) pair (spec §4.F.c): an Ok state anchored at now.
func DefaultSensorState(sensorID string, nowUTC time.Time) SensorState {
	return SensorState{
		SensorID:       sensorID,
		Status:         StatusOk,
		StatusStartUTC: nowUTC,
	}
}

// AlertType mirrors SensorStatus for the emitted alert, plus the
// ok-recovery case which has no corresponding "stuck" status.
type AlertType string

const (
	AlertHigh    AlertType = "High"
	AlertLow     AlertType = "Low"
	AlertOk      AlertType = "Ok"
	AlertNoData  AlertType = "NoData"
)

// Alert is the payload handed to the template renderer when the sensor
// state machine decides a notification is due (spec §4.E).
type Alert struct {
	SensorID       string    `json:"sensor_id"`
	SensorName     string    `json:"sensor_name"`
	StoreName      string    `json:"store_name"`
	LocationName   string    `json:"location_name"`
	Datetime       time.Time `json:"datetime"`
	DataAge        string    `json:"data_age"`
	Temperature    string    `json:"temperature"`
	Type           AlertType `json:"alert_type"`
	ReminderNumber int       `json:"reminder_number"`
}

// NotificationType is the delivery channel for a Recipient/NotificationEvent.
type NotificationType string

const (
	NotificationEmail    NotificationType = "Email"
	NotificationTelegram NotificationType = "Telegram"
)

// ParseNotificationType interprets a wire-format type string (§6: uppercase
// "EMAIL"/"TELEGRAM" from SQL recipient lists), defaulting to Email on an
// unknown value per spec §4.B step 4.
func ParseNotificationType(s string) NotificationType {
	switch s {
	case "TELEGRAM", "Telegram", "telegram":
		return NotificationTelegram
	case "EMAIL", "Email", "email":
		return NotificationEmail
	default:
		return NotificationEmail
	}
}

// Recipient is a concrete delivery target.
type Recipient struct {
	ID               string
	Name             string
	NotificationType NotificationType
	ToAddress        string
}

// Target is the resolved delivery target shape used by the recipient
// resolver and the enqueue context (spec §4.B/§6).
type Target struct {
	Name             string           `json:"name"`
	ToAddress        string           `json:"to_address"`
	NotificationType NotificationType `json:"notification_type"`
}

func (t Target) Key() string {
	return string(t.NotificationType) + "|" + t.ToAddress
}

// RecipientList groups direct recipients under a name.
type RecipientList struct {
	ID   string
	Name string
}

type RecipientListMember struct {
	RecipientListID string
	RecipientID     string
}

// SqlRecipientList is evaluated by the data-source collaborator to produce
// dynamic delivery targets (spec §3, contract in §6).
type SqlRecipientList struct {
	ID                 string
	Name               string
	SQL                string
	RequiredParameters []string
}

// NotificationQuery is a named SQL statement whose results are exposed to
// templates under ReferenceName (spec §3, contract in §6).
type NotificationQuery struct {
	ID                 string
	ReferenceName      string
	SQL                string
	RequiredParameters []string
}

// EventStatus is the lifecycle status of a NotificationEvent (spec §3).
type EventStatus string

const (
	EventQueued  EventStatus = "Queued"
	EventSent    EventStatus = "Sent"
	EventErrored EventStatus = "Errored"
	EventFailed  EventStatus = "Failed"
)

// MaxRetries bounds NotificationEvent.Retries (spec §3, §7, §8 invariant 7).
const MaxRetries = 3

// NotificationEvent is the outgoing message record (spec §3).
type NotificationEvent struct {
	ID               string
	NotificationConfigID *string
	Type             NotificationType
	ToAddress        string
	Title            *string
	Body             string
	Status           EventStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SentAt           *time.Time
	RetryAt          *time.Time
	Retries          int
	ErrorMessage     *string
}

// JSONPayload is a generic driver.Valuer/sql.Scanner wrapper for JSON
// columns, following the teacher's Payload type.
type JSONPayload []byte

func (p JSONPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return []byte(p), nil
}

func (p *JSONPayload) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*p = append(JSONPayload(nil), v...)
		return nil
	case string:
		*p = JSONPayload(v)
		return nil
	default:
		return fmt.Errorf("unsupported Scan type %T for JSONPayload", src)
	}
}

func (p JSONPayload) Unmarshal(target interface{}) error {
	if len(p) == 0 {
		return nil
	}
	return json.Unmarshal(p, target)
}
