package netmon

import (
	"bytes"
	"fmt"
)

const (
	bsLineLength   = 13
	bsLinesPerPage = 3
	bsChannelAt    = 4
	bsPowerAt      = 10

	minLocationLength = 48
)

// Byte ranges of the location page fields.
var (
	countryField = [2]int{7, 10}
	networkField = [2]int{13, 16}
	areaField    = [2]int{21, 26}
	channelField = [2]int{34, 37}
	cellField    = [2]int{43, 48}
)

// Parses leading decimal digits after optional blanks and sign. Anything else yields 0,
// the handset fills empty fields with text.
func atoi(b []byte) int {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	neg := false
	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		neg = b[i] == '-'
		i++
	}
	n := 0
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		n = n*10 + int(b[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

func nonNegative(n int) uint {
	if n < 0 {
		return 0
	}
	return uint(n)
}

func field(p []byte, r [2]int) ([]byte, error) {
	if r[0] < 0 || r[1] > len(p) || r[0] > r[1] {
		return nil, fmt.Errorf("%w: field %d:%d of %d bytes", ErrUnexpectedFormat, r[0], r[1], len(p))
	}
	return p[r[0]:r[1]], nil
}

func parseBasestationLine(line []byte) (BaseStation, bool) {
	ch := atoi(line[bsChannelAt : bsChannelAt+3])
	if ch <= 0 {
		return BaseStation{}, false // Filler, like "xxx".
	}

	var power []byte
	if line[bsPowerAt] == '-' {
		power = line[bsPowerAt+1 : bsPowerAt+3]
	} else {
		power = line[bsPowerAt : bsPowerAt+3]
	}
	return BaseStation{
		Channel: uint16(ch),
		Power:   nonNegative(atoi(power)),
	}, true
}

// Returns the entries of a base station page in page order. Lines which don't fit in
// the payload are skipped.
func parseBasestationPage(p []byte) []BaseStation {
	var res []BaseStation
	for i := 0; i < bsLinesPerPage; i++ {
		start := i * bsLineLength
		if start+bsLineLength > len(p) {
			continue
		}
		if bs, ok := parseBasestationLine(p[start : start+bsLineLength]); ok {
			res = append(res, bs)
		}
	}
	return res
}

func parseUintField(p []byte, r [2]int) (int, error) {
	b, err := field(p, r)
	if err != nil {
		return 0, err
	}
	return atoi(b), nil
}

func parseLocation(p []byte) (Location, error) {
	if len(p) < minLocationLength {
		return Location{}, fmt.Errorf("%w: location page of %d bytes", ErrNoData, len(p))
	}

	country, err := parseUintField(p, countryField)
	if err != nil {
		return Location{}, err
	}
	network, err := parseUintField(p, networkField)
	if err != nil {
		return Location{}, err
	}
	area, err := field(p, areaField)
	if err != nil {
		return Location{}, err
	}
	ch, err := parseUintField(p, channelField)
	if err != nil {
		return Location{}, err
	}
	cell, err := parseUintField(p, cellField)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Country: nonNegative(country),
		Network: nonNegative(network),
		Area:    uint16(atoi(bytes.TrimLeft(area, " "))),
		Channel: uint16(ch),
		Cell:    uint16(cell),
	}, nil
}
