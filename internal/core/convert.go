package core

// convert.go provides the typed conversions used by row validation.
//
// These functions turn the raw strings of a park row into the values stored
// on a NormalizedPark:
//   - Park references and grid squares (validated newtypes)
//   - Latitude/longitude with range checks
//   - Entity ids (lenient: failures become nil, not errors)
//   - Active flags and location descriptions
//
// Optional results are returned as pointers; nil means "no value".

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	parkReferenceRegex = regexp.MustCompile(`^[A-Z]{1,3}-\d{4,5}$`)
	gridSquareRegex    = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Za-z]{0,2}$`)
	decimalRegex       = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// ParseParkReference validates a park reference case-insensitively and
// returns its canonical uppercase form.
func ParseParkReference(s string) (ParkReference, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if !parkReferenceRegex.MatchString(upper) {
		return "", fmt.Errorf("Invalid park reference format: %s", s)
	}
	return ParkReference(upper), nil
}

// ParseGridSquare uppercases and validates a Maidenhead locator.
// The error message carries the original input.
func ParseGridSquare(s string) (GridSquare, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if !gridSquareRegex.MatchString(upper) {
		return "", fmt.Errorf("Invalid grid square format: %s", s)
	}
	return GridSquare(upper), nil
}

// String returns the reference text.
func (r ParkReference) String() string { return string(r) }

// String returns the locator text.
func (g GridSquare) String() string { return string(g) }

// parseCoordinate parses s as a decimal float in [-limit, limit].
// Hex floats, NaN, infinities and unparsable input are rejected.
func parseCoordinate(s string, limit float64) (float64, bool) {
	s = strings.TrimSpace(s)
	if !decimalRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < -limit || f > limit {
		return 0, false
	}
	return f, true
}

// parseEntityID parses an entity id into the int32 range the stores keep.
// Unparsable or out-of-range input yields nil.
func parseEntityID(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil
	}
	id := int(n)
	return &id
}

// parseActive maps "1" and "true" (any case) to 1, everything else to 0.
func parseActive(s string) int {
	s = strings.TrimSpace(s)
	if s == "1" || strings.EqualFold(s, "true") {
		return 1
	}
	return 0
}

// splitLocation derives state and country from a location description such
// as "Wyoming, US". Without a second segment the country falls back to the
// raw entity id.
func splitLocation(locationDesc, entityID string) (state, country *string) {
	if locationDesc != "" {
		parts := strings.Split(locationDesc, ",")
		state = optionalString(parts[0])
		if len(parts) > 1 {
			country = optionalString(parts[1])
		}
	}
	if country == nil {
		country = optionalString(entityID)
	}
	return state, country
}

// optionalString returns a pointer to the trimmed string, or nil if empty.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
