package date

import (
	"encoding/json"
	"flag"
	"testing"
	"time"
)

// TestTime assert that the time() is cannonical and gives comparable times.
func TestTime(t *testing.T) {
	d1 := New(2025, 7, 31)
	d2 := New(2025, 7, 31)

	if d1.time() != d2.time() {
		t.Errorf("invalid time() function same day gives two different time")
	}
}

func TestNew_Normalizes(t *testing.T) {
	if got, want := New(2024, 2, 30), New(2024, 3, 1); got != want {
		t.Errorf("New(2024, 2, 30) = %v, want %v", got, want)
	}
	if got := New(2017, 12, 31).Add(1); got != New(2018, 1, 1) {
		t.Errorf("Add(1) = %v, want 2018-01-01", got)
	}
}

func TestParse(t *testing.T) {
	d, err := Parse("2025-7-1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := d.String(); got != "2025-07-01" {
		t.Errorf("String() = %q, want 2025-07-01", got)
	}
	if _, err := Parse("01/07/2025"); err == nil {
		t.Error("Parse(01/07/2025) error = nil, want an error")
	}
}

func TestDate_Bounds(t *testing.T) {
	d := New(2018, 1, 1)
	if got, want := d.Start(), time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Start() = %v, want %v", got, want)
	}
	end := d.End()
	if Of(end) != d || Of(end.Add(time.Nanosecond)) != d.Add(1) {
		t.Errorf("End() = %v is not the last instant of %v", end, d)
	}
	// 23:00 in New York is the next day in UTC.
	ny := time.FixedZone("EST", -5*3600)
	if got := Of(time.Date(2017, 12, 31, 23, 0, 0, 0, ny)); got != d {
		t.Errorf("Of() = %v, want %v", got, d)
	}
}

func TestDate_Flag(t *testing.T) {
	var until Date
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&until, "until", "cutoff day")
	if err := fs.Parse([]string{"-until", "2018-2-3"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if until != New(2018, 2, 3) {
		t.Errorf("until = %v, want 2018-02-03", until)
	}
	if !(Date{}).IsZero() || until.IsZero() {
		t.Error("IsZero() mismatch")
	}
}

func TestDate_JSON(t *testing.T) {
	data, err := json.Marshal(New(2018, 1, 31))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"2018-01-31"` {
		t.Errorf("Marshal() = %s", data)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2018-1-31"`), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if d != New(2018, 1, 31) {
		t.Errorf("Unmarshal() = %v", d)
	}
}
