// Package nmea reads NMEA 0183 sentences from a GPS receiver.
package nmea

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"headsup/pkg/geo"
	"headsup/pkg/position"
)

const knotsToMPS = 0.514444

var (
	// ErrChecksum is returned when a sentence checksum does not match.
	ErrChecksum = errors.New("nmea: checksum mismatch")
	// ErrNotRMC is returned for well-formed sentences other than RMC.
	ErrNotRMC = errors.New("nmea: not an RMC sentence")
	// ErrMalformed is returned when a sentence cannot be parsed.
	ErrMalformed = errors.New("nmea: malformed sentence")
)

// ParseRMC parses a recommended minimum (RMC) sentence from any talker.
// A sentence with status V returns position.ErrPositionUnavailable.
func ParseRMC(line string) (position.Fix, error) {
	body, err := verify(strings.TrimSpace(line))
	if err != nil {
		return position.Fix{}, err
	}

	fields := strings.Split(body, ",")
	if len(fields[0]) != 5 || !strings.HasSuffix(fields[0], "RMC") {
		return position.Fix{}, ErrNotRMC
	}
	if len(fields) < 10 {
		return position.Fix{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(fields))
	}
	if fields[2] != "A" {
		return position.Fix{}, position.ErrPositionUnavailable
	}

	lat, err := coordinate(fields[3], fields[4], 2)
	if err != nil {
		return position.Fix{}, err
	}
	lon, err := coordinate(fields[5], fields[6], 3)
	if err != nil {
		return position.Fix{}, err
	}

	fix := position.Fix{
		Point: geo.Point{Lat: lat, Lon: lon},
	}
	if fields[7] != "" {
		knots, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return position.Fix{}, fmt.Errorf("%w: speed %q", ErrMalformed, fields[7])
		}
		mps := knots * knotsToMPS
		fix.Speed = &mps
	}
	if fields[8] != "" {
		course, err := strconv.ParseFloat(fields[8], 64)
		if err != nil {
			return position.Fix{}, fmt.Errorf("%w: course %q", ErrMalformed, fields[8])
		}
		fix.Heading = &course
	}
	if ts, err := timestamp(fields[1], fields[9]); err == nil {
		fix.Timestamp = ts
	}
	if !fix.Point.Valid() {
		return position.Fix{}, fmt.Errorf("%w: position out of range", ErrMalformed)
	}
	return fix, nil
}

// verify strips the leading '$' and checks the optional '*hh' checksum.
func verify(line string) (string, error) {
	if !strings.HasPrefix(line, "$") {
		return "", fmt.Errorf("%w: missing '$'", ErrMalformed)
	}
	body := line[1:]
	star := strings.LastIndexByte(body, '*')
	if star < 0 {
		return body, nil
	}

	want, err := strconv.ParseUint(body[star+1:], 16, 8)
	if err != nil {
		return "", fmt.Errorf("%w: checksum %q", ErrMalformed, body[star+1:])
	}
	body = body[:star]

	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	if sum != byte(want) {
		return "", ErrChecksum
	}
	return body, nil
}

// coordinate converts (d)ddmm.mmmm plus hemisphere into decimal degrees.
func coordinate(v, hemi string, degDigits int) (float64, error) {
	if len(v) < degDigits+2 {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformed, v)
	}
	deg, err := strconv.Atoi(v[:degDigits])
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformed, v)
	}
	mins, err := strconv.ParseFloat(v[degDigits:], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformed, v)
	}

	out := float64(deg) + mins/60
	switch hemi {
	case "N", "E":
	case "S", "W":
		out = -out
	default:
		return 0, fmt.Errorf("%w: hemisphere %q", ErrMalformed, hemi)
	}
	return out, nil
}

func timestamp(hms, dmy string) (time.Time, error) {
	if len(hms) < 6 || len(dmy) != 6 {
		return time.Time{}, ErrMalformed
	}
	// Parse accepts a fractional second after the seconds field; multi-Hz
	// receivers report several fixes within one second.
	return time.Parse("020106150405", dmy+hms)
}
