package proration

import (
	"time"

	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
)

// Window is the billing interval a prorated charge is measured against.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// WindowFromAnchor derives the billing window containing now from a cycle
// anchor. When the anchor does not align cleanly with now, the window simply
// runs one period forward from now.
func WindowFromAnchor(anchor time.Time, period types.BillingPeriod, count int, now time.Time) (Window, error) {
	if count <= 0 {
		count = 1
	}
	start, err := types.AlignBillingAnchor(anchor, period, count, now, false)
	if err != nil {
		return Window{}, err
	}
	if start.IsZero() {
		end, err := types.AddBillingPeriod(now, period, count)
		if err != nil {
			return Window{}, err
		}
		return Window{Start: now, End: end}, nil
	}
	end, err := types.AddBillingPeriod(start, period, count)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// NewWindow validates an explicit start and end pair.
func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, ierr.NewError("billing window end must be after start").
			WithReportableDetails(map[string]any{"start": start, "end": end}).
			Mark(ierr.ErrValidation)
	}
	return Window{Start: start, End: end}, nil
}
