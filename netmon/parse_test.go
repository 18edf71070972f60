package netmon

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtoi(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"123", 123},
		{" 71", 71},
		{"  7", 7},
		{"xxx", 0},
		{"", 0},
		{"-63", -63},
		{"12a", 12},
		{"05 ", 5},
		{"...", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, atoi([]byte(tt.in)), "%q", tt.in)
	}
}

func TestParseBasestationPage(t *testing.T) {
	p := []byte(".~.." + " 71   -63" +
		"     85   -75" +
		"    xxx      ")
	assert.Equal(t, []BaseStation{{71, 63}, {85, 75}}, parseBasestationPage(p))
}

func TestParseBasestationPageThreeDigitPower(t *testing.T) {
	p := []byte("    540   104" + "      9   -9 " + "    102   -81")
	assert.Equal(t, []BaseStation{{540, 104}, {9, 9}, {102, 81}}, parseBasestationPage(p))
}

func TestParseBasestationPageSkipsNegativeChannels(t *testing.T) {
	p := []byte("    -12   -63" + "     85   -75")
	assert.Equal(t, []BaseStation{{85, 75}}, parseBasestationPage(p))
}

func TestParseBasestationPageSkipsShortLines(t *testing.T) {
	p := []byte("     71   -63" + "     85   -7")
	assert.Equal(t, []BaseStation{{71, 63}}, parseBasestationPage(p))
	assert.Empty(t, parseBasestationPage(nil))
}

func locationPayload() []byte {
	p := []byte(strings.Repeat(" ", 52))
	copy(p[7:], "232")
	copy(p[13:], "05")
	copy(p[21:], "  812")
	copy(p[34:], " 71")
	copy(p[43:], "40321")
	return p
}

func TestParseLocation(t *testing.T) {
	loc, err := parseLocation(locationPayload())
	require.NoError(t, err)
	assert.Equal(t, Location{Country: 232, Network: 5, Area: 812, Cell: 40321, Channel: 71}, loc)
}

func TestParseLocationNonNumeric(t *testing.T) {
	p := locationPayload()
	copy(p[7:], "abc")
	loc, err := parseLocation(p)
	require.NoError(t, err)
	assert.Zero(t, loc.Country)
	assert.Equal(t, uint16(812), loc.Area)
}

func TestParseLocationShort(t *testing.T) {
	_, err := parseLocation(locationPayload()[:47])
	assert.True(t, errors.Is(err, ErrNoData))

	loc, err := parseLocation(locationPayload()[:48])
	require.NoError(t, err)
	assert.Equal(t, uint16(40321), loc.Cell)
}

func TestField(t *testing.T) {
	_, err := field([]byte("abc"), [2]int{1, 4})
	assert.True(t, errors.Is(err, ErrUnexpectedFormat))

	b, err := field([]byte("abc"), [2]int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, "bc", string(b))
}
