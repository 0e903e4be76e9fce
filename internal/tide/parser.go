package tide

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obcmarine/bridgegap/internal/models"
)

// HeightBounds rejects physically implausible heights at parse time.
type HeightBounds struct {
	Min float64
	Max float64
}

// DefaultHeightBounds covers every New Zealand port with room to spare.
var DefaultHeightBounds = HeightBounds{Min: -1.0, Max: 6.0}

// ParseYear converts one raw LINZ tide table into ordered TideDays. Rows
// fail independently: a bad row lands in the diagnostics and parsing moves
// on. Only a year that yields no days at all is an error.
//
// Row shape: day, [weekday,] month, year, then up to four time,height pairs
// with blanks for absent extrema, e.g. "1,Th,1,2026,05:47,3.1,11:51,0.8,18:06,3.1,,".
func ParseYear(raw *models.RawTideYear, bounds HeightBounds) ([]models.TideDay, []RowError, error) {
	var (
		days    []models.TideDay
		rowErrs []RowError
		seen    = make(map[string]bool)
	)

	scanner := bufio.NewScanner(strings.NewReader(raw.Payload))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		// LINZ tables open with a handful of caption lines; anything whose
		// first field is not a day number is not a data row.
		if _, err := strconv.Atoi(strings.TrimSpace(fields[0])); err != nil {
			continue
		}

		day, rowErr := parseRow(fields, raw.Year, bounds)
		if rowErr != nil {
			rowErr.Line = lineNo
			rowErr.Raw = line
			rowErrs = append(rowErrs, *rowErr)
			continue
		}

		key := day.Date.Format("2006-01-02")
		if seen[key] {
			rowErrs = append(rowErrs, RowError{Line: lineNo, Raw: line, Reason: "duplicate date"})
			continue
		}
		seen[key] = true
		days = append(days, *day)
	}

	if len(days) == 0 {
		return nil, rowErrs, &NoUsableDataError{
			StationID: raw.StationID,
			Year:      raw.Year,
			Reason:    fmt.Sprintf("no valid rows among %d rejected", len(rowErrs)),
		}
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	deriveKinds(days)

	if len(rowErrs) > 0 {
		log.Warn().
			Str("station_id", raw.StationID).
			Int("year", raw.Year).
			Int("valid_days", len(days)).
			Int("rejected_rows", len(rowErrs)).
			Msg("Parsed tide year with rejected rows")
	}

	return days, rowErrs, nil
}

// parseRow parses one data row. The weekday column of the published tables
// is optional: some exports drop it.
func parseRow(fields []string, wantYear int, bounds HeightBounds) (*models.TideDay, *RowError) {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 3 {
		return nil, &RowError{Reason: "too few fields"}
	}

	day, _ := strconv.Atoi(fields[0])

	pairStart := 3
	month, err := strconv.Atoi(fields[1])
	if err != nil {
		// Column 1 is a weekday name; the date continues one column later.
		pairStart = 4
		if len(fields) < 4 {
			return nil, &RowError{Reason: "too few fields"}
		}
		month, err = strconv.Atoi(fields[2])
		if err != nil {
			return nil, &RowError{Reason: "invalid month"}
		}
	}
	year, err := strconv.Atoi(fields[pairStart-1])
	if err != nil {
		return nil, &RowError{Reason: "invalid year"}
	}

	if year != wantYear {
		return nil, &RowError{Reason: fmt.Sprintf("row year %d does not match table year %d", year, wantYear)}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, &RowError{Reason: "invalid calendar date"}
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || date.Month() != time.Month(month) {
		return nil, &RowError{Reason: "invalid calendar date"}
	}

	var events []models.TideEvent
	lastMinute := -1
	for i := pairStart; i < len(fields) && len(events) < 4; i += 2 {
		timeStr := fields[i]
		heightStr := ""
		if i+1 < len(fields) {
			heightStr = fields[i+1]
		}

		if timeStr == "" && heightStr == "" {
			continue
		}
		if timeStr == "" || heightStr == "" {
			return nil, &RowError{Reason: "half-empty time/height pair"}
		}

		minute, err := parseMinute(timeStr)
		if err != nil {
			return nil, &RowError{Reason: fmt.Sprintf("unparsable time %q", timeStr)}
		}
		height, err := strconv.ParseFloat(heightStr, 64)
		if err != nil {
			return nil, &RowError{Reason: fmt.Sprintf("unparsable height %q", heightStr)}
		}
		if height < bounds.Min || height > bounds.Max {
			return nil, &RowError{Reason: fmt.Sprintf("height %.2f outside plausible range [%.1f, %.1f]", height, bounds.Min, bounds.Max)}
		}
		if minute <= lastMinute {
			return nil, &RowError{Reason: "times not strictly increasing"}
		}
		lastMinute = minute

		events = append(events, models.TideEvent{MinuteOfDay: minute, Height: height})
	}

	if len(events) == 0 {
		return nil, &RowError{Reason: "no tide events"}
	}

	return &models.TideDay{Date: date, Events: events}, nil
}

func parseMinute(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return hour*60 + minute, nil
}

// deriveKinds infers HIGH/LOW by comparing each event against its
// neighbours across the whole year, so a one-event day still gets a kind
// from the days around it. Adjacent events of the same kind flag the day as
// suspect rather than dropping it.
func deriveKinds(days []models.TideDay) {
	type ref struct {
		day, ev int
	}
	var seq []ref
	for d := range days {
		for e := range days[d].Events {
			seq = append(seq, ref{d, e})
		}
	}

	height := func(i int) float64 {
		r := seq[i]
		return days[r.day].Events[r.ev].Height
	}

	for i, r := range seq {
		var kind models.TideKind
		switch {
		case i+1 < len(seq) && height(i) != height(i+1):
			if height(i) > height(i+1) {
				kind = models.TideHigh
			} else {
				kind = models.TideLow
			}
		case i > 0 && height(i) != height(i-1):
			if height(i) > height(i-1) {
				kind = models.TideHigh
			} else {
				kind = models.TideLow
			}
		default:
			// No distinguishable neighbour. Leave the kind unset and let
			// the alternation check mark the day.
		}
		days[r.day].Events[r.ev].Kind = kind
	}

	for d := range days {
		events := days[d].Events
		for e := range events {
			if events[e].Kind == "" {
				days[d].Suspect = true
			}
			if e > 0 && events[e].Kind != "" && events[e].Kind == events[e-1].Kind {
				days[d].Suspect = true
			}
		}
	}
}
