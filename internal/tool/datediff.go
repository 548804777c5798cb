package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// DateDifference counts whole days between two dates, rounding partial days up.
type DateDifference struct{}

// DateArgs are the DateDifference arguments.
type DateArgs struct {
	Date1 string `json:"date1"`
	Date2 string `json:"date2"`
}

// Name implements Tool.
func (DateDifference) Name() string { return "date-difference-calculator" }

// Description implements Tool.
func (DateDifference) Description() string { return "计算两个日期之间的天数差" }

// Parameters implements Tool.
func (DateDifference) Parameters() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"date1": {Type: jsonschema.String, Description: "第一个日期，以YYYY-MM-DD格式表示"},
			"date2": {Type: jsonschema.String, Description: "第二个日期，以YYYY-MM-DD格式表示"},
		},
		Required: []string{"date1", "date2"},
	}
}

// Call implements Tool. args must be a JSON object with date1 and date2.
func (DateDifference) Call(_ context.Context, args string) (string, error) {
	var a DateArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("date-difference: arguments must be {\"date1\",\"date2\"}: %v: %w", err, domain.ErrInvalidInput)
	}
	d1, err := parseDate(a.Date1)
	if err != nil {
		return "", err
	}
	d2, err := parseDate(a.Date2)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(DaysBetween(d1, d2)), nil
}

// DaysBetween returns the absolute difference in days, rounded up.
func DaysBetween(a, b time.Time) int {
	diff := b.Sub(a)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// parseDate accepts YYYY-MM-DD (UTC midnight) or RFC 3339.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("date-difference: %q is not YYYY-MM-DD: %w", s, domain.ErrInvalidInput)
}
