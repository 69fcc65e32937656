package utils

import (
	"fmt"
	"strconv"
	"strings"
)

const sizeUnitStep = 1024

// sizeUnits lists the lower-case suffixes in ascending powers of 1024.
var sizeUnits = []string{"b", "kb", "mb", "gb", "tb", "pb"}

// FormatFileSize converts a byte length into a human-readable lower-case unit
// string such as "512b", "1.5kb" or "10mb".
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		return "0b"
	}
	value := float64(bytes)
	unitIndex := 0
	for value >= sizeUnitStep && unitIndex < len(sizeUnits)-1 {
		value /= sizeUnitStep
		unitIndex++
	}
	switch {
	case unitIndex == 0:
		return strconv.FormatInt(bytes, 10) + sizeUnits[0]
	case value < 10:
		return strings.TrimSuffix(strconv.FormatFloat(value, 'f', 1, 64), ".0") + sizeUnits[unitIndex]
	default:
		return strconv.FormatFloat(value, 'f', 0, 64) + sizeUnits[unitIndex]
	}
}

// ParseFileSize reads a size written as a plain byte count or with one of the
// FormatFileSize suffixes, case-insensitively. An empty value is zero.
func ParseFileSize(value string) (int64, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return 0, nil
	}
	multiplier := int64(1)
	for unitIndex := len(sizeUnits) - 1; unitIndex > 0; unitIndex-- {
		if trimmed, found := strings.CutSuffix(normalized, sizeUnits[unitIndex]); found {
			normalized = trimmed
			for step := 0; step < unitIndex; step++ {
				multiplier *= sizeUnitStep
			}
			break
		}
	}
	normalized = strings.TrimSpace(strings.TrimSuffix(normalized, sizeUnits[0]))
	number, parseError := strconv.ParseFloat(normalized, 64)
	if parseError != nil || number < 0 {
		return 0, fmt.Errorf("invalid size %q", value)
	}
	return int64(number * float64(multiplier)), nil
}
