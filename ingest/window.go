/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ingest

import (
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
)

// Window is the half-open interval [Start, End) of operation timestamps that belong
// to one reconciliation.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowPolicy describes the daily cut-off.
type WindowPolicy struct {
	Location   *time.Location
	CutoffHour int
	// LagDays shifts the whole window back, for reconciling older exports.
	LagDays    int
}

// LoadWindowPolicy resolves the IANA zone name of a policy.
func LoadWindowPolicy(zone string, cutoffHour, lagDays int) (WindowPolicy, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return WindowPolicy{}, errors.Wrapf(err, "unknown time zone %q", zone)
	}
	if cutoffHour < 0 || cutoffHour > 23 {
		return WindowPolicy{}, errors.Errorf("cutoff hour %d out of range", cutoffHour)
	}
	if lagDays < 0 {
		return WindowPolicy{}, errors.Errorf("lag days %d must not be negative", lagDays)
	}
	return WindowPolicy{Location: loc, CutoffHour: cutoffHour, LagDays: lagDays}, nil
}

// WindowFor returns the window for a run started at now. The window ends at today's
// cut-off and starts at the previous business day's cut-off: the day before from
// Tuesday to Sunday, the previous Friday on Mondays.
func (p WindowPolicy) WindowFor(now time.Time) Window {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	cutoff := func(daysBack int) time.Time {
		return time.Date(y, m, d-daysBack, p.CutoffHour, 0, 0, 0, loc)
	}

	back := 1
	if local.Weekday() == time.Monday {
		back = 3
	}
	return Window{
		Start: cutoff(back + p.LagDays),
		End:   cutoff(p.LagDays),
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
