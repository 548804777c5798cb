package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

func TestCalculator(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"17 * 7.12", "121.04"},
		{`{"input": "17 * 7.12"}`, "121.04"},
		{"(1 + 2) * 3", "9"},
		{"-4 + 10 / 4", "-1.5"},
		{"7 % 3", "1"},
		{"sqrt(16) + pow(2, 10)", "1028"},
		{"round(2.5)", "3"},
	}
	for _, tc := range tests {
		got, err := Calculator{}.Call(context.Background(), tc.in)
		if err != nil {
			t.Errorf("Call(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Call(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCalculator_Invalid(t *testing.T) {
	for _, in := range []string{"", "1 +", "1 / 0", "x + 1", `"a"`, "os.Exit(1)", "nope(1)", "sqrt(1, 2)"} {
		if _, err := (Calculator{}).Call(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Call(%q): expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestExchangeRate(t *testing.T) {
	tool := ExchangeRate{USDCNY: 7.12}
	tests := []struct {
		in   string
		want string
	}{
		{"USD", "1 USD = 7.12 CNY"},
		{"CNY", "1 CNY = 0.1404 USD"},
		{`{"input":"USD"}`, "1 USD = 7.12 CNY"},
	}
	for _, tc := range tests {
		got, err := tool.Call(context.Background(), tc.in)
		if err != nil {
			t.Fatalf("Call(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Call(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"EUR", "usd", ""} {
		if _, err := tool.Call(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Call(%q): expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestExchangeRate_DefaultRate(t *testing.T) {
	got, err := ExchangeRate{}.Call(context.Background(), "USD")
	if err != nil || got != "1 USD = 7.12 CNY" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestDateDifference(t *testing.T) {
	tests := []struct {
		args string
		want string
	}{
		{`{"date1":"2024-01-01","date2":"2024-03-01"}`, "60"},
		{`{"date1":"2024-03-01","date2":"2024-01-01"}`, "60"},
		{`{"date1":"2023-12-31","date2":"2023-12-31"}`, "0"},
		{`{"date1":"2024-01-01T00:00:00Z","date2":"2024-01-02T06:00:00Z"}`, "2"},
	}
	for _, tc := range tests {
		got, err := DateDifference{}.Call(context.Background(), tc.args)
		if err != nil {
			t.Fatalf("Call(%s): %v", tc.args, err)
		}
		if got != tc.want {
			t.Errorf("Call(%s) = %s, want %s", tc.args, got, tc.want)
		}
	}

	for _, args := range []string{`2024-01-01`, `{"date1":"yesterday","date2":"2024-01-01"}`, `{"date1":"2024-01-01"}`} {
		if _, err := (DateDifference{}).Call(context.Background(), args); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Call(%s): expected ErrInvalidInput, got %v", args, err)
		}
	}
}

func TestDaysBetween_RoundsUp(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, a.Add(time.Hour)); got != 1 {
		t.Errorf("1 hour = %d days, want 1", got)
	}
}

func TestRegistry(t *testing.T) {
	r := Default(7.12)

	if got := strings.Join(r.Names(), ", "); got != "calculator, exchange-rate-calculator, date-difference-calculator" {
		t.Errorf("Names() = %s", got)
	}
	if d := r.Describe(); !strings.Contains(d, "exchange-rate-calculator: 获取人民币和美元之间的最新汇率") {
		t.Errorf("Describe() = %s", d)
	}

	out, err := r.Call(context.Background(), "calculator", "17 * 7.12")
	if err != nil || out != "121.04" {
		t.Fatalf("Call calculator = %q, %v", out, err)
	}
	if _, err := r.Call(context.Background(), "search", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown tool, got %v", err)
	}
}

func TestRegistry_Definitions(t *testing.T) {
	defs := Default(7.12).Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	for _, d := range defs {
		if d.Type != openai.ToolTypeFunction || d.Function == nil || d.Function.Name == "" {
			t.Errorf("bad definition: %+v", d)
		}
	}

	raw, err := json.Marshal(defs[2])
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Function struct {
			Parameters struct {
				Required []string `json:"required"`
			} `json:"parameters"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if strings.Join(decoded.Function.Parameters.Required, ",") != "date1,date2" {
		t.Errorf("required = %v", decoded.Function.Parameters.Required)
	}
}

func TestNewRegistry_Duplicate(t *testing.T) {
	if _, err := NewRegistry(Calculator{}, Calculator{}); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
