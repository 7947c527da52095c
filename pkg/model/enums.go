package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// RestrictionReason is the reason an item is restricted.
// Values outside the known set decode to RestrictionReasonUnknown.
type RestrictionReason string

const (
	RestrictionReasonMarket   RestrictionReason = "market"
	RestrictionReasonProduct  RestrictionReason = "product"
	RestrictionReasonExplicit RestrictionReason = "explicit"
	RestrictionReasonUnknown  RestrictionReason = "unknown"
)

// UnmarshalJSON implements json.Unmarshaler.
func (r *RestrictionReason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("restriction reason: %w", err)
	}

	switch v := RestrictionReason(s); v {
	case RestrictionReasonMarket, RestrictionReasonProduct, RestrictionReasonExplicit:
		*r = v
	default:
		*r = RestrictionReasonUnknown
	}
	return nil
}

// CopyrightType distinguishes a composition copyright from a sound recording one.
type CopyrightType string

const (
	// CopyrightTypeCopyright is the "C" copyright.
	CopyrightTypeCopyright CopyrightType = "C"

	// CopyrightTypePerformance is the "P" (phonographic) copyright.
	CopyrightTypePerformance CopyrightType = "P"
)

// UnmarshalJSON implements json.Unmarshaler.
func (c *CopyrightType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("copyright type: %w", err)
	}

	switch v := CopyrightType(s); v {
	case CopyrightTypeCopyright, CopyrightTypePerformance:
		*c = v
		return nil
	default:
		return fmt.Errorf("copyright type: unknown value %q", s)
	}
}

// DatePrecision is the precision of a release date.
type DatePrecision string

const (
	DatePrecisionYear  DatePrecision = "year"
	DatePrecisionMonth DatePrecision = "month"
	DatePrecisionDay   DatePrecision = "day"
)

// UnmarshalJSON implements json.Unmarshaler.
func (p *DatePrecision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date precision: %w", err)
	}

	switch v := DatePrecision(s); v {
	case DatePrecisionYear, DatePrecisionMonth, DatePrecisionDay:
		*p = v
		return nil
	default:
		return fmt.Errorf("date precision: unknown value %q", s)
	}
}

// layout returns the time layout matching the precision.
func (p DatePrecision) layout() (string, error) {
	switch p {
	case DatePrecisionYear:
		return "2006", nil
	case DatePrecisionMonth:
		return "2006-01", nil
	case DatePrecisionDay:
		return "2006-01-02", nil
	default:
		return "", fmt.Errorf("date precision: unknown value %q", string(p))
	}
}

// ParseReleaseDate parses a release date string as reported together with its precision.
// Missing components are set to their first value (January, day 1).
func ParseReleaseDate(date string, precision DatePrecision) (time.Time, error) {
	layout, err := precision.layout()
	if err != nil {
		return time.Time{}, err
	}

	t, err := time.Parse(layout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse release date %q (%s): %w", date, precision, err)
	}
	return t, nil
}
