// Package timerange turns the temporal entities of an analytics command
// (year, quarter, month, explicit dates, named periods) into an absolute,
// inclusive date range.
package timerange

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"banking-command-workers/internal/models"
)

const dateLayout = "2006-01-02"

var ErrInvalidTemporalEntity = errors.New("INVALID_TEMPORAL_ENTITY")

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

var monthNames = map[string]int{
	"january": 1, "jan": 1, "february": 2, "feb": 2, "march": 3, "mar": 3,
	"april": 4, "apr": 4, "may": 5, "june": 6, "jun": 6, "july": 7, "jul": 7,
	"august": 8, "aug": 8, "september": 9, "sep": 9, "october": 10, "oct": 10,
	"november": 11, "nov": 11, "december": 12, "dec": 12,
}

// Resolver is safe for concurrent use; it only reads the clock.
type Resolver struct {
	now func() time.Time
}

// NewResolver returns a Resolver reading "now" from the given clock, or from
// time.Now when clock is nil.
func NewResolver(clock func() time.Time) *Resolver {
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{now: clock}
}

// Resolve returns nil when no temporal entity is present or when a named
// period is not recognised. Unparsable year, quarter or month values yield
// ErrInvalidTemporalEntity.
//
// Precedence: year (with quarter, else month) > startDate > period > timePeriod.
func (r *Resolver) Resolve(entities models.Entities) (*models.DateRange, error) {
	switch {
	case entities.Has(models.EntityYear):
		return r.resolveYear(entities)
	case entities.Has(models.EntityStartDate):
		end := entities.Text(models.EntityEndDate)
		if !entities.Has(models.EntityEndDate) {
			end = r.today().Format(dateLayout)
		}
		return &models.DateRange{
			StartDate: entities.Text(models.EntityStartDate),
			EndDate:   end,
		}, nil
	case entities.Has(models.EntityPeriod):
		return r.resolvePeriod(entities.Text(models.EntityPeriod)), nil
	case entities.Has(models.EntityTimePeriod):
		s, ok := entities.String(models.EntityTimePeriod)
		if !ok {
			return nil, nil
		}
		return resolveQuarterExpression(s), nil
	}
	return nil, nil
}

func (r *Resolver) resolveYear(entities models.Entities) (*models.DateRange, error) {
	year, err := toInt(entities[models.EntityYear])
	if err != nil {
		return nil, fmt.Errorf("%w: year: %v", ErrInvalidTemporalEntity, err)
	}

	if raw, ok := entities[models.EntityQuarter]; ok {
		q, err := parseQuarter(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: quarter: %v", ErrInvalidTemporalEntity, err)
		}
		if q >= 1 && q <= 4 {
			return quarterRange(year, q), nil
		}
		return yearRange(year), nil
	}

	if raw, ok := entities[models.EntityMonth]; ok {
		m, err := parseMonth(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: month: %v", ErrInvalidTemporalEntity, err)
		}
		return &models.DateRange{
			StartDate: formatDate(year, m, 1),
			EndDate:   formatDate(year, m, LastDayOfMonth(year, m)),
		}, nil
	}

	return yearRange(year), nil
}

func (r *Resolver) resolvePeriod(raw string) *models.DateRange {
	period := strings.ToLower(strings.TrimSpace(raw))
	today := r.today()
	year, month := today.Year(), int(today.Month())
	todayStr := today.Format(dateLayout)

	switch period {
	case "today":
		return &models.DateRange{StartDate: todayStr, EndDate: todayStr}

	case "yesterday":
		y := today.AddDate(0, 0, -1).Format(dateLayout)
		return &models.DateRange{StartDate: y, EndDate: y}

	case "this week", "current week", "week":
		start := today.AddDate(0, 0, -mondayOffset(today))
		return &models.DateRange{StartDate: start.Format(dateLayout), EndDate: todayStr}

	case "last week", "previous week":
		start := today.AddDate(0, 0, -(mondayOffset(today) + 7))
		end := start.AddDate(0, 0, 6)
		return &models.DateRange{StartDate: start.Format(dateLayout), EndDate: end.Format(dateLayout)}

	case "this month", "current month", "month":
		return &models.DateRange{StartDate: formatDate(year, month, 1), EndDate: todayStr}

	case "last month", "previous month":
		m, y := month-1, year
		if m == 0 {
			m, y = 12, y-1
		}
		return &models.DateRange{
			StartDate: formatDate(y, m, 1),
			EndDate:   formatDate(y, m, LastDayOfMonth(y, m)),
		}

	case "last quarter", "previous quarter":
		q, y := quarterOf(month)-1, year
		if q == 0 {
			q, y = 4, y-1
		}
		return quarterRange(y, q)

	case "this quarter", "current quarter", "quarter":
		startMonth := (quarterOf(month)-1)*3 + 1
		return &models.DateRange{StartDate: formatDate(year, startMonth, 1), EndDate: todayStr}

	case "year to date", "ytd", "this year":
		return &models.DateRange{StartDate: formatDate(year, 1, 1), EndDate: todayStr}

	case "last year", "previous year":
		return yearRange(year - 1)
	}

	// "last 30 days", "past 7 days"
	if strings.HasPrefix(period, "last ") || strings.HasPrefix(period, "past ") {
		parts := strings.Fields(period)
		if len(parts) >= 3 && isDigits(parts[1]) {
			days, err := strconv.Atoi(parts[1])
			if err == nil && days > 0 && days < 366 {
				return &models.DateRange{
					StartDate: today.AddDate(0, 0, -days).Format(dateLayout),
					EndDate:   todayStr,
				}
			}
		}
	}

	return nil
}

// resolveQuarterExpression handles "Q1 2024" and "2024 Q1".
func resolveQuarterExpression(expr string) *models.DateRange {
	upper := strings.ToUpper(expr)
	if !strings.Contains(upper, "Q") {
		return nil
	}

	var yearPart, quarterPart string
	for _, part := range strings.Fields(strings.ReplaceAll(upper, "Q", " Q")) {
		switch {
		case strings.HasPrefix(part, "Q") && len(part) >= 2 && isDigits(part[1:]):
			quarterPart = part[1:]
		case isDigits(part) && len(part) == 4:
			yearPart = part
		}
	}
	if yearPart == "" || quarterPart == "" {
		return nil
	}

	year, _ := strconv.Atoi(yearPart)
	q, err := strconv.Atoi(quarterPart)
	if err != nil || q < 1 || q > 4 {
		return nil
	}
	return quarterRange(year, q)
}

func (r *Resolver) today() time.Time {
	now := r.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// IsLeapYear uses the simplified divisible-by-four rule; century years are
// not special-cased.
func IsLeapYear(year int) bool {
	return year%4 == 0
}

func LastDayOfMonth(year, month int) int {
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return daysInMonth[month-1]
}

func yearRange(year int) *models.DateRange {
	return &models.DateRange{
		StartDate: formatDate(year, 1, 1),
		EndDate:   formatDate(year, 12, 31),
	}
}

func quarterRange(year, quarter int) *models.DateRange {
	startMonth := (quarter-1)*3 + 1
	endMonth := quarter * 3
	return &models.DateRange{
		StartDate: formatDate(year, startMonth, 1),
		EndDate:   formatDate(year, endMonth, LastDayOfMonth(year, endMonth)),
	}
}

func quarterOf(month int) int {
	return (month-1)/3 + 1
}

// mondayOffset is the number of days since the most recent Monday.
func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func formatDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func parseQuarter(raw interface{}) (int, error) {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(strings.ToUpper(s))
		return strconv.Atoi(strings.ReplaceAll(s, "Q", ""))
	}
	return toInt(raw)
}

func parseMonth(raw interface{}) (int, error) {
	if s, ok := raw.(string); ok {
		if m, found := monthNames[strings.ToLower(strings.TrimSpace(s))]; found {
			return m, nil
		}
	}
	m, err := toInt(raw)
	if err != nil {
		return 0, err
	}
	if m < 1 || m > 12 {
		return 0, fmt.Errorf("month %d out of range", m)
	}
	return m, nil
}

func toInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
