package core

import (
	"fmt"
	"strconv"
	"strings"
)

const tleLineLength = 69

// tleField is one fixed-column field of a TLE line and how go-satellite
// rebuilds it before parsing.
type tleField struct {
	name  string
	value func(line string) string
	isInt bool
}

func tleColumns(from, to int) func(string) string {
	return func(l string) string { return strings.Replace(l[from:to], " ", "", 2) }
}

// tleExponent rebuilds the implied-decimal exponent notation used by the
// nddot and bstar fields ("12345-4" -> ".12345e-4").
func tleExponent(sign, mantissa, exp int) func(string) string {
	return func(l string) string {
		return strings.Replace(l[sign:mantissa]+"."+l[mantissa:exp]+"e"+l[exp:exp+2], " ", "", 2)
	}
}

var tleLine1Fields = []tleField{
	{name: "satellite number", value: func(l string) string { return strings.TrimSpace(l[2:7]) }, isInt: true},
	{name: "epoch year", value: func(l string) string { return l[18:20] }, isInt: true},
	{name: "epoch day", value: func(l string) string { return l[20:32] }},
	{name: "mean motion derivative", value: tleColumns(33, 43)},
	{name: "mean motion second derivative", value: tleExponent(44, 45, 50)},
	{name: "bstar", value: tleExponent(53, 54, 59)},
}

var tleLine2Fields = []tleField{
	{name: "inclination", value: tleColumns(8, 16)},
	{name: "right ascension", value: tleColumns(17, 25)},
	{name: "eccentricity", value: func(l string) string { return "." + l[26:33] }},
	{name: "argument of perigee", value: tleColumns(34, 42)},
	{name: "mean anomaly", value: tleColumns(43, 51)},
	{name: "mean motion", value: tleColumns(52, 63)},
}

// ValidateTLE checks a two-line element set column by column, parsing every
// field the SGP4 propagator reads. go-satellite exits the process on a field
// it cannot parse, so lines must pass here before reaching it.
func ValidateTLE(line1, line2 string) error {
	line1, line2 = strings.TrimSpace(line1), strings.TrimSpace(line2)
	if err := validateTLELine(1, line1, tleLine1Fields); err != nil {
		return err
	}
	if err := validateTLELine(2, line2, tleLine2Fields); err != nil {
		return err
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("%w: TLE lines describe different satellites (%q, %q)", ErrInvalidOrbit, line1[2:7], line2[2:7])
	}
	return nil
}

func validateTLELine(n int, line string, fields []tleField) error {
	if len(line) != tleLineLength {
		return fmt.Errorf("%w: TLE line %d has %d characters, want %d", ErrInvalidOrbit, n, len(line), tleLineLength)
	}
	if prefix := strconv.Itoa(n) + " "; !strings.HasPrefix(line, prefix) {
		return fmt.Errorf("%w: TLE line %d must start with %q", ErrInvalidOrbit, n, prefix)
	}
	for _, f := range fields {
		raw := f.value(line)
		var err error
		if f.isInt {
			_, err = strconv.ParseInt(raw, 10, 0)
		} else {
			_, err = strconv.ParseFloat(raw, 64)
		}
		if err != nil {
			return fmt.Errorf("%w: TLE line %d %s %q", ErrInvalidOrbit, n, f.name, raw)
		}
	}
	return nil
}
