package domain

import "time"

// clickWindowHours is how many hour partitions of page views are scanned for
// clicks belonging to one hour of searches. A search rendered near the end of
// hour H collects clicks into hour H+1.
const clickWindowHours = 2

// HourPartition identifies one hour partition of a partitioned relation.
type HourPartition struct {
	Year  int
	Month int
	Day   int
	Hour  int
}

// Start returns the UTC start of the hour.
func (p HourPartition) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), p.Day, p.Hour, 0, 0, 0, time.UTC)
}

// Next returns the following hour partition, rolling over day, month and
// year boundaries.
func (p HourPartition) Next() HourPartition {
	t := p.Start().Add(time.Hour)
	return HourPartition{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Hour: t.Hour()}
}

// ClickWindow is the inclusive Unix-time range of page views eligible to be
// clicks for one hour of searches.
type ClickWindow struct {
	StartUnix int64
	EndUnix   int64
}

// ClickWindow returns the window for searches of this hour: from the start
// of the hour to the last second before the start of hour+2. Both bounds are
// derived from the partition alone so readers can statically prune input
// partitions.
func (p HourPartition) ClickWindow() ClickWindow {
	start := p.Start().Unix()
	return ClickWindow{
		StartUnix: start,
		EndUnix:   start + clickWindowHours*int64(time.Hour/time.Second) - 1,
	}
}

// Contains reports whether ts falls inside the window. Both bounds are
// inclusive.
func (w ClickWindow) Contains(ts int64) bool {
	return ts >= w.StartUnix && ts <= w.EndUnix
}
