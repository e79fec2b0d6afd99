package domain

import (
	"testing"
	"time"
)

func TestClickWindowBounds(t *testing.T) {
	part := HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 9}
	window := part.ClickWindow()

	start := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC).Unix()
	if window.StartUnix != start {
		t.Errorf("StartUnix = %d, want %d", window.StartUnix, start)
	}

	// Last eligible second is one before the start of hour+2.
	wantEnd := time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC).Unix() - 1
	if window.EndUnix != wantEnd {
		t.Errorf("EndUnix = %d, want %d", window.EndUnix, wantEnd)
	}
}

func TestClickWindowContains(t *testing.T) {
	window := HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 9}.ClickWindow()

	tests := []struct {
		name string
		ts   int64
		want bool
	}{
		{"start of hour", window.StartUnix, true},
		{"one before start", window.StartUnix - 1, false},
		{"last second of window", window.EndUnix, true},
		{"start of hour plus two", window.EndUnix + 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := window.Contains(tt.ts); got != tt.want {
				t.Errorf("Contains(%d) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}

func TestHourPartitionNext(t *testing.T) {
	tests := []struct {
		name string
		in   HourPartition
		want HourPartition
	}{
		{
			name: "same day",
			in:   HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 9},
			want: HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 10},
		},
		{
			name: "day rollover",
			in:   HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 23},
			want: HourPartition{Year: 2024, Month: 3, Day: 16, Hour: 0},
		},
		{
			name: "year rollover",
			in:   HourPartition{Year: 2024, Month: 12, Day: 31, Hour: 23},
			want: HourPartition{Year: 2025, Month: 1, Day: 1, Hour: 0},
		},
		{
			name: "leap day",
			in:   HourPartition{Year: 2024, Month: 2, Day: 29, Hour: 23},
			want: HourPartition{Year: 2024, Month: 3, Day: 1, Hour: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Next(); got != tt.want {
				t.Errorf("Next() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
