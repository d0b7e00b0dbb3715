// Package analytics projects the visitor history into the numbers shown on
// the admin analytics dashboard.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/ifuryst/lol"
)

// Range is a reporting window
type Range string

const (
	Range1h  Range = "1h"
	Range6h  Range = "6h"
	Range24h Range = "24h"
	Range7d  Range = "7d"
)

const (
	topPagesLimit = 8
	citiesLimit   = 6
	hourlyBuckets = 24
)

// ParseRange accepts 1h, 6h, 24h and 7d; empty means 24h
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case "":
		return Range24h, nil
	case Range1h, Range6h, Range24h, Range7d:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", cnst.ErrInvalidRange, s)
	}
}

// Hours is the window length in hours
func (r Range) Hours() int {
	switch r {
	case Range1h:
		return 1
	case Range6h:
		return 6
	case Range7d:
		return 168
	default:
		return 24
	}
}

// Count is one labelled row of a breakdown
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Bucket is one hour of the activity chart
type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Report is the dashboard projection of one range
type Report struct {
	Range       Range     `json:"range"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Total       int       `json:"total"`
	Desktop     int       `json:"desktop"`
	Mobile      int       `json:"mobile"` // phones and tablets
	Direct      int       `json:"direct"`
	UniqueIPs   int       `json:"uniqueIps"`
	AvgDuration float64   `json:"avgDurationSeconds"` // over ended visits only
	TopPages    []Count   `json:"topPages"`
	Hourly      []Bucket  `json:"hourly"`
	OS          []Count   `json:"os"`
	Browsers    []Count   `json:"browsers"`
	Cities      []Count   `json:"cities"`
	Countries   []Count   `json:"countries"`
}

// Build aggregates the records that entered inside r ending at now. Hour
// buckets always cover the trailing 24 hours and are labelled in loc.
func Build(records []*visitor.HistoryRecord, now time.Time, r Range, loc *time.Location) *Report {
	if loc == nil {
		loc = time.UTC
	}
	from := now.Add(-time.Duration(r.Hours()) * time.Hour)
	rep := &Report{Range: r, From: from, To: now}

	var (
		pages     = map[string]int{}
		oses      = map[string]int{}
		browsers  = map[string]int{}
		cities    = map[string]int{}
		countries = map[string]int{}
		ips       []string
		ended     int
		spent     time.Duration
	)

	hourly, hourStart := newHourly(now, loc)
	for _, rec := range records {
		if rec == nil || rec.EnteredAt.Before(from) {
			continue
		}
		rep.Total++

		switch {
		case visitor.IsMobile(rec.Device):
			rep.Mobile++
		case rec.Device == cnst.DeviceDesktop:
			rep.Desktop++
		}
		if rec.Referrer == "" || rec.Referrer == cnst.Direct {
			rep.Direct++
		}

		page := rec.CurrentPage
		if page == "" {
			page = cnst.DefaultPage
		}
		pages[page]++
		if rec.OS != "" {
			oses[rec.OS]++
		}
		if rec.Browser != "" {
			browsers[rec.Browser]++
		}
		countKnown(cities, rec.City)
		countKnown(countries, rec.Country)
		if known(rec.IP) {
			ips = append(ips, rec.IP)
		}
		if rec.ExitedAt != nil {
			ended++
			spent += rec.Duration(now)
		}

		if !rec.EnteredAt.Before(hourStart) {
			if idx := int(rec.EnteredAt.Sub(hourStart) / time.Hour); idx < hourlyBuckets {
				hourly[idx].Count++
			}
		}
	}

	rep.UniqueIPs = len(lol.UniqSlice(ips))
	if ended > 0 {
		rep.AvgDuration = (spent / time.Duration(ended)).Seconds()
	}
	rep.TopPages = ranked(pages, topPagesLimit)
	rep.Hourly = hourly
	rep.OS = ranked(oses, 0)
	rep.Browsers = ranked(browsers, 0)
	rep.Cities = ranked(cities, citiesLimit)
	rep.Countries = ranked(countries, 0)
	return rep
}

// newHourly returns the empty chart and the start of its first bucket. The
// last bucket is the hour containing now.
func newHourly(now time.Time, loc *time.Location) ([]Bucket, time.Time) {
	local := now.In(loc)
	current := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
	first := current.Add(-(hourlyBuckets - 1) * time.Hour)

	out := make([]Bucket, hourlyBuckets)
	for i := range out {
		start := first.Add(time.Duration(i) * time.Hour)
		out[i] = Bucket{Label: fmt.Sprintf("%d:00", start.Hour()), Start: start}
	}
	return out, first
}

func known(v string) bool {
	return v != "" && v != cnst.Unknown && v != cnst.Loading
}

func countKnown(m map[string]int, v string) {
	if known(v) {
		m[v]++
	}
}

// ranked orders by count, then label; limit <= 0 keeps everything
func ranked(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for label, n := range m {
		out = append(out, Count{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
