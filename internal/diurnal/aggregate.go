package diurnal

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ktmair/pm25-pipeline/internal/measurement"
)

// HourStat summarizes the value distribution for one local hour of day.
// The statistic fields are meaningful only when Count > 0; an empty hour is
// "no data", never zero.
type HourStat struct {
	Hour   int
	Count  int
	Mean   float64
	Median float64
	P25    float64
	P75    float64
	Min    float64
	Max    float64
}

// Diurnal holds one bucket per local hour of day. All 24 buckets are always
// present regardless of emptiness, so consumers get a stable hour domain.
type Diurnal struct {
	Hours [24]HourStat
}

// Aggregate buckets the table's rows by local hour of day and summarizes
// each bucket over the trailing window. Local time is UTC plus the fixed
// offset. The window is anchored at the latest local timestamp present in
// the table; rows at or before anchor minus window are excluded. An empty or
// fully windowed-out table yields 24 empty buckets, not an error.
func Aggregate(table measurement.Table, offset time.Duration, window Window) *Diurnal {
	var d Diurnal
	for h := range d.Hours {
		d.Hours[h].Hour = h
	}
	if len(table) == 0 {
		return &d
	}

	locals := make([]time.Time, len(table))
	var anchor time.Time
	for i, r := range table {
		locals[i] = r.Timestamp.UTC().Add(offset)
		if locals[i].After(anchor) {
			anchor = locals[i]
		}
	}
	cutoff := anchor.Add(-time.Duration(window))

	buckets := make([][]float64, 24)
	for i, r := range table {
		if !locals[i].After(cutoff) {
			continue
		}
		h := locals[i].Hour()
		buckets[h] = append(buckets[h], r.Value)
	}

	for h, values := range buckets {
		if len(values) == 0 {
			continue
		}
		sort.Float64s(values)

		st := &d.Hours[h]
		st.Count = len(values)
		st.Mean = stat.Mean(values, nil)
		st.Median = quantile(values, 0.50)
		st.P25 = quantile(values, 0.25)
		st.P75 = quantile(values, 0.75)
		st.Min = floats.Min(values)
		st.Max = floats.Max(values)
	}
	return &d
}

// quantile computes the linearly interpolated quantile of sorted values,
// interpolating between the order statistics around position (n-1)*p.
// gonum's stat.Quantile CumulantKinds interpolate the empirical CDF with a
// different convention, so the position math lives here.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Band is the per-hour median and quartile series consumed by overlay-band
// renderers. Nil entries mark hours without observations.
type Band struct {
	Median [24]*float64 `json:"median"`
	Q25    [24]*float64 `json:"q25"`
	Q75    [24]*float64 `json:"q75"`
}

// Band projects the aggregate into a 24-point median/q25/q75 series, rounded
// for display.
func (d *Diurnal) Band() Band {
	var b Band
	for h, st := range d.Hours {
		if st.Count == 0 {
			continue
		}
		b.Median[h] = round2(st.Median)
		b.Q25[h] = round2(st.P25)
		b.Q75[h] = round2(st.P75)
	}
	return b
}

// MarshalJSON renders the bucket for presentation: statistics are rounded to
// two decimals, and hours without observations carry nulls so consumers can
// tell "no data" from a measured zero. Internal computation stays unrounded.
func (h HourStat) MarshalJSON() ([]byte, error) {
	type row struct {
		Hour   int      `json:"hour"`
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		Median *float64 `json:"median"`
		P25    *float64 `json:"p25"`
		P75    *float64 `json:"p75"`
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
	}
	r := row{Hour: h.Hour, Count: h.Count}
	if h.Count > 0 {
		r.Mean = round2(h.Mean)
		r.Median = round2(h.Median)
		r.P25 = round2(h.P25)
		r.P75 = round2(h.P75)
		r.Min = round2(h.Min)
		r.Max = round2(h.Max)
	}
	return json.Marshal(r)
}

func round2(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}
