package core

// validation.go provides row-level validation for park CSV data before insertion.
//
// Every rule is evaluated independently so one bad line reports all of its
// problems at once. A row yields either a NormalizedPark or a non-empty list
// of messages, never both. Coordinates and grid squares that fail their
// checks are reported and never carried into a park.

import "fmt"

// RowValidation contains the result of validating a row.
// Exactly one of Park and Errors is set.
type RowValidation struct {
	Park   *NormalizedPark
	Errors []string
}

// Valid returns true if the row produced a park.
func (v RowValidation) Valid() bool {
	return v.Park != nil
}

// ValidateRow validates a raw row and normalizes it into a park. The line
// number is not embedded in the messages; callers attach it to the
// RowValidationError.
func ValidateRow(row RawRow, _ int) RowValidation {
	var errs []string

	var ref ParkReference
	if row.Reference == "" {
		errs = append(errs, "Missing required field: reference")
	} else if r, err := ParseParkReference(row.Reference); err != nil {
		errs = append(errs, err.Error())
	} else {
		ref = r
	}

	if row.Name == "" {
		errs = append(errs, "Missing required field: name")
	}

	var lat, lon *float64
	if row.Latitude != "" {
		if f, ok := parseCoordinate(row.Latitude, 90); ok {
			lat = &f
		} else {
			errs = append(errs, fmt.Sprintf("Invalid latitude: %s", row.Latitude))
		}
	}
	if row.Longitude != "" {
		if f, ok := parseCoordinate(row.Longitude, 180); ok {
			lon = &f
		} else {
			errs = append(errs, fmt.Sprintf("Invalid longitude: %s", row.Longitude))
		}
	}

	var grid *GridSquare
	if row.Grid != "" {
		if g, err := ParseGridSquare(row.Grid); err != nil {
			errs = append(errs, err.Error())
		} else {
			grid = &g
		}
	}

	if len(errs) > 0 {
		return RowValidation{Errors: errs}
	}

	state, country := splitLocation(row.LocationDesc, row.EntityID)

	return RowValidation{
		Park: &NormalizedPark{
			Reference:    ref,
			Name:         row.Name,
			Latitude:     lat,
			Longitude:    lon,
			Grid:         grid,
			State:        state,
			Country:      country,
			EntityID:     parseEntityID(row.EntityID),
			LocationDesc: optionalString(row.LocationDesc),
			IsActive:     parseActive(row.Active),
			IsFavorite:   0,
		},
	}
}
