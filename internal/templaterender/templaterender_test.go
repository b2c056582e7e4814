package templaterender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderString_DottedPath(t *testing.T) {
	ctx := map[string]interface{}{
		"parameters": map[string]interface{}{"project": "Cold Room 4"},
	}
	out, err := RenderString("Project: {{ parameters.project }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Project: Cold Room 4", out)
}

func TestRenderString_ArrayIndex(t *testing.T) {
	ctx := map[string]interface{}{
		"query1": []interface{}{
			map[string]interface{}{"column": "42"},
		},
	}
	out, err := RenderString("Value: {{ query1.0.column }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Value: 42", out)
}

func TestRenderString_MissingKeyErrors(t *testing.T) {
	_, err := RenderString("{{ missing.key }}", map[string]interface{}{})
	require.Error(t, err)
}

func TestRenderString_Conditional(t *testing.T) {
	ctx := map[string]interface{}{"sensor_ok": true}
	out, err := RenderString("{% if sensor_ok %}OK{% else %}ALERT{% endif %}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK", out)

	ctx["sensor_ok"] = false
	out, err = RenderString("{% if sensor_ok %}OK{% else %}ALERT{% endif %}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "ALERT", out)
}

func TestRenderString_ConditionalMissingKeyTakesElseBranch(t *testing.T) {
	out, err := RenderString("{% if absent %}A{% else %}B{% endif %}", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "B", out)
}

func TestRenderString_NestedConditional(t *testing.T) {
	ctx := map[string]interface{}{"a": true, "b": false}
	tmpl := "{% if a %}{% if b %}AB{% else %}A{% endif %}{% else %}none{% endif %}"
	out, err := RenderString(tmpl, ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", out)
}

func TestRenderString_NoContextNeeded(t *testing.T) {
	out, err := RenderString("static text, no placeholders", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "static text, no placeholders", out)
}
