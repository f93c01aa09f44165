package daterange

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr bool
	}{
		{
			name:  "valid range",
			start: date(2015, 6, 1),
			end:   date(2015, 8, 1),
		},
		{
			name:    "start equals end",
			start:   date(2015, 6, 1),
			end:     date(2015, 6, 1),
			wantErr: true,
		},
		{
			name:    "start after end",
			start:   date(2015, 8, 1),
			end:     date(2015, 6, 1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var invalid *InvalidRangeError
				if !errors.As(err, &invalid) {
					t.Errorf("New() error type = %T, want *InvalidRangeError", err)
				}
			}
		})
	}
}

func TestSplit(t *testing.T) {
	r := Range{Start: date(2015, 6, 1), End: date(2015, 8, 1)}

	batches, err := Split(r, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := []Range{
		{Start: date(2015, 6, 1), End: date(2015, 7, 1)},
		{Start: date(2015, 7, 1), End: date(2015, 7, 31)},
		{Start: date(2015, 7, 31), End: date(2015, 8, 1)},
	}

	if len(batches) != len(want) {
		t.Fatalf("Split() returned %d batches, want %d", len(batches), len(want))
	}
	for i := range want {
		if !batches[i].Start.Equal(want[i].Start) || !batches[i].End.Equal(want[i].End) {
			t.Errorf("batch %d = %s, want %s", i, batches[i], want[i])
		}
	}
}

func TestSplit_ExactCover(t *testing.T) {
	tests := []struct {
		name     string
		r        Range
		interval time.Duration
	}{
		{"evenly divisible", Range{date(2022, 1, 1), date(2022, 1, 9)}, 2 * 24 * time.Hour},
		{"clipped last batch", Range{date(2022, 1, 1), date(2022, 1, 8)}, 3 * 24 * time.Hour},
		{"interval larger than range", Range{date(2022, 1, 1), date(2022, 1, 2)}, 30 * 24 * time.Hour},
		{"sub-day interval", Range{date(2022, 1, 1), date(2022, 1, 2)}, 7 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches, err := Split(tt.r, tt.interval)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}

			// Union equals the input range: first start, last end, and
			// contiguity in between.
			if !batches[0].Start.Equal(tt.r.Start) {
				t.Errorf("first batch starts at %s, want %s", batches[0].Start, tt.r.Start)
			}
			if !batches[len(batches)-1].End.Equal(tt.r.End) {
				t.Errorf("last batch ends at %s, want %s", batches[len(batches)-1].End, tt.r.End)
			}
			for i := 1; i < len(batches); i++ {
				if !batches[i].Start.Equal(batches[i-1].End) {
					t.Errorf("gap or overlap between batch %d and %d: %s vs %s",
						i-1, i, batches[i-1].End, batches[i].Start)
				}
			}
			for i, b := range batches {
				if !b.Start.Before(b.End) {
					t.Errorf("batch %d is empty or inverted: %s", i, b)
				}
				if i < len(batches)-1 && b.Duration() != tt.interval {
					t.Errorf("batch %d duration = %s, want %s", i, b.Duration(), tt.interval)
				}
			}
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	r := Range{Start: date(2015, 1, 1), End: date(2016, 1, 1)}

	first, err := Split(r, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	second, err := Split(r, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("repeated Split() lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("batch %d differs between calls: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestSplit_InvalidInputs(t *testing.T) {
	valid := Range{Start: date(2015, 6, 1), End: date(2015, 8, 1)}

	t.Run("inverted range", func(t *testing.T) {
		_, err := Split(Range{Start: valid.End, End: valid.Start}, time.Hour)
		var invalid *InvalidRangeError
		if !errors.As(err, &invalid) {
			t.Errorf("error = %v, want *InvalidRangeError", err)
		}
	})

	t.Run("zero interval", func(t *testing.T) {
		_, err := Split(valid, 0)
		var invalid *InvalidIntervalError
		if !errors.As(err, &invalid) {
			t.Errorf("error = %v, want *InvalidIntervalError", err)
		}
	})

	t.Run("negative interval", func(t *testing.T) {
		_, err := Split(valid, -time.Hour)
		var invalid *InvalidIntervalError
		if !errors.As(err, &invalid) {
			t.Errorf("error = %v, want *InvalidIntervalError", err)
		}
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Range
		wantErr bool
	}{
		{
			name:  "valid interval",
			input: "2015-06-01T00:00:00Z/2015-08-01T00:00:00Z",
			want:  Range{date(2015, 6, 1), date(2015, 8, 1)},
		},
		{
			name:    "missing separator",
			input:   "2015-06-01T00:00:00Z",
			wantErr: true,
		},
		{
			name:    "bad start",
			input:   "june/2015-08-01T00:00:00Z",
			wantErr: true,
		},
		{
			name:    "inverted",
			input:   "2015-08-01T00:00:00Z/2015-06-01T00:00:00Z",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRange_Contains(t *testing.T) {
	r := Range{Start: date(2015, 6, 1), End: date(2015, 8, 1)}

	if !r.Contains(r.Start) {
		t.Error("start should be inclusive")
	}
	if r.Contains(r.End) {
		t.Error("end should be exclusive")
	}
	if !r.Contains(date(2015, 7, 15)) {
		t.Error("interior instant should be contained")
	}
	if r.Contains(date(2015, 5, 31)) {
		t.Error("instant before start should not be contained")
	}
}

func TestInterval_Duration(t *testing.T) {
	tests := []struct {
		name string
		in   Interval
		want time.Duration
	}{
		{"thirty days", Interval{Days: 30}, 30 * 24 * time.Hour},
		{"mixed", Interval{Weeks: 1, Days: 2, Hours: 3, Minutes: 4, Seconds: 5},
			9*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second},
		{"zero", Interval{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Duration(); got != tt.want {
				t.Errorf("Duration() = %s, want %s", got, tt.want)
			}
			if tt.in.IsZero() != (tt.want == 0) {
				t.Errorf("IsZero() = %v for %s", tt.in.IsZero(), tt.want)
			}
		})
	}
}
