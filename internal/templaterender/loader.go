package templaterender

import "fmt"

// StaticLoader resolves named templates from an in-memory map, following
// the teacher pack's convention of a static Go map of template bodies
// (loft-backend's pkg/templates) rather than reading from disk — the
// engine's named templates are fixed alert/report bodies, not
// user-editable content.
type StaticLoader struct {
	templates map[string]string
}

func NewStaticLoader(templates map[string]string) *StaticLoader {
	merged := make(map[string]string, len(DefaultTemplates)+len(templates))
	for k, v := range DefaultTemplates {
		merged[k] = v
	}
	for k, v := range templates {
		merged[k] = v
	}
	return &StaticLoader{templates: merged}
}

func (l *StaticLoader) Load(name string) (string, error) {
	src, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("template %q not found", name)
	}
	return src, nil
}

// DefaultTemplates holds the engine's built-in alert/report bodies,
// overridable per-deployment by passing an override map to NewStaticLoader.
var DefaultTemplates = map[string]string{
	"coldchain/temperature_title": "Cold chain alert: {{sensor_name}} ({{store_name}})",
	"coldchain/temperature": "Sensor {{sensor_name}} at {{store_name}} / {{location_name}} reported " +
		"{{temperature}} at {{datetime}}, outside its configured range. (alert #{{reminder_number}})",
	"coldchain/recovered": "Sensor {{sensor_name}} at {{store_name}} / {{location_name}} has returned to " +
		"its normal temperature range ({{temperature}} at {{datetime}}).",
	"coldchain/no_data": "Sensor {{sensor_name}} at {{store_name}} / {{location_name}} has not reported " +
		"a reading in {{data_age}}; it may be offline.",
}
