package wasmrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSignedWithBaseDecimal(t *testing.T) {
	v, n := parseSignedWithBase("   56abc", 10)
	assert.Equal(t, int64(56), v, "expected the leading decimal run to parse")
	assert.Equal(t, 5, n, "expected consumed length to include the leading whitespace")
}

func TestParseSignedWithBaseNegative(t *testing.T) {
	v, n := parseSignedWithBase("-120", 10)
	assert.Equal(t, int64(-120), v, "expected a leading minus sign to negate")
	assert.Equal(t, 4, n)
}

func TestParseSignedWithBaseHexPrefixDetectedAtBaseZero(t *testing.T) {
	v, n := parseSignedWithBase("0x1A", 0)
	assert.Equal(t, int64(0x1a), v, "expected base 0 to auto-detect the 0x prefix as hex")
	assert.Equal(t, 4, n)
}

func TestParseSignedWithBaseHexPrefixStrippedAtBaseSixteen(t *testing.T) {
	v, n := parseSignedWithBase("0X1a", 16)
	assert.Equal(t, int64(0x1a), v, "expected an explicit base 16 to also strip the 0x prefix")
	assert.Equal(t, 4, n)
}

func TestParseSignedWithBaseOctalAutodetect(t *testing.T) {
	v, n := parseSignedWithBase("017", 0)
	assert.Equal(t, int64(15), v, "expected a leading zero with base 0 to parse as octal")
	assert.Equal(t, 3, n)
}

func TestParseSignedWithBaseNoDigitsConsumesNothing(t *testing.T) {
	v, n := parseSignedWithBase("   xyz", 10)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, 0, n, "expected no digits to leave endptr at the start of the string")
}

func TestParseUnsignedWithBaseDecimal(t *testing.T) {
	v, n := parseUnsignedWithBase("4000000000", 10)
	assert.Equal(t, uint64(4000000000), v)
	assert.Equal(t, 10, n)
}

func TestConsumeBasePrefixHexAtBaseZero(t *testing.T) {
	eff, next := consumeBasePrefix("0xFF", 0, 0)
	assert.Equal(t, 16, eff)
	assert.Equal(t, 2, next, "expected the 0x prefix itself to be skipped")
}

func TestConsumeBasePrefixDecimalHasNoPrefixToSkip(t *testing.T) {
	eff, next := consumeBasePrefix("123", 0, 10)
	assert.Equal(t, 10, eff)
	assert.Equal(t, 0, next)
}
