package chatmarkdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvert_EscapesSpecialChars(t *testing.T) {
	out := Convert("Temp: 9.5C (high!)")
	assert.Equal(t, `Temp: 9\.5C \(high\!\)`, out)
}

func TestConvert_PreservesLinkURL(t *testing.T) {
	out := Convert("See [dashboard](https://example.com/path_1)")
	assert.Equal(t, "See [dashboard](https://example.com/path_1)", out)
}

func TestConvert_HeadingBecomesBoldUnderline(t *testing.T) {
	out := Convert("# High temperature alert")
	assert.Equal(t, "*__High temperature alert__*", out)
}

func TestConvert_LinkTextStillEscaped(t *testing.T) {
	out := Convert("[a.b](https://x.test)")
	assert.Equal(t, `[a\.b](https://x.test)`, out)
}
