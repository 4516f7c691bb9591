// Package slots expands schedule time ranges into bookable hourly slots.
package slots

import (
	"fmt"
	"strconv"
	"strings"

	"clinicbook/internal/models"
)

// SlotDurationMinutes is the fixed appointment length.
const SlotDurationMinutes = 60

// ExpandRange generates hourly slot start times from start up to (but never
// reaching) end. Times are "HH:MM" strings; the result is empty when the
// range is empty or inverted.
func ExpandRange(start, end string) ([]string, error) {
	startMin, err := parseMinutes(start)
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}

	endMin, err := parseMinutes(end)
	if err != nil {
		return nil, fmt.Errorf("parse end time: %w", err)
	}

	var result []string
	for cursor := startMin; cursor < endMin; cursor += SlotDurationMinutes {
		result = append(result, formatMinutes(cursor))
	}
	return result, nil
}

// ExpandRanges expands each range in order and de-duplicates the combined
// result, keeping the first occurrence of each slot.
func ExpandRanges(ranges []models.TimeRange) ([]string, error) {
	seen := make(map[string]struct{})
	var result []string

	for _, r := range ranges {
		expanded, err := ExpandRange(r.StartTime, r.EndTime)
		if err != nil {
			return nil, err
		}
		for _, s := range expanded {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			result = append(result, s)
		}
	}
	return result, nil
}

// Subtract removes booked slots from the generated list by exact string
// match, preserving order.
func Subtract(generated, booked []string) []string {
	if len(booked) == 0 {
		return generated
	}

	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}

	var result []string
	for _, s := range generated {
		if _, ok := taken[s]; ok {
			continue
		}
		result = append(result, s)
	}
	return result
}

func parseMinutes(timeStr string) (int, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", timeStr)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %s", timeStr)
	}

	return hour*60 + minute, nil
}

func formatMinutes(total int) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
