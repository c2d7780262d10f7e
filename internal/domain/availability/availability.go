// Package availability turns a doctor's stored weekly pattern into concrete
// bookable slots.
package availability

import (
	"fmt"
	"iter"
	"strings"

	"github.com/medicare/medicare/backend/internal/domain/entities"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
)

// Defaults applied when an Options field is zero
const (
	DefaultHorizonDays = 30
	DefaultStepMinutes = 30
)

// Options bounds slot generation
type Options struct {
	HorizonDays int
	StepMinutes int
}

func (o Options) normalize() (Options, error) {
	if o.HorizonDays < 0 {
		return o, apperrors.NewValidationError("horizon days must not be negative")
	}
	if o.StepMinutes < 0 {
		return o, apperrors.NewValidationError("step minutes must not be negative")
	}
	if o.HorizonDays == 0 {
		o.HorizonDays = DefaultHorizonDays
	}
	if o.StepMinutes == 0 {
		o.StepMinutes = DefaultStepMinutes
	}
	return o, nil
}

// Parse validates a stored pattern. Blank entries in the working days list are
// ignored, so "" is an empty set.
func Parse(rec entities.AvailabilityRecord) (entities.Availability, error) {
	var days entities.WeekdaySet
	for _, name := range strings.Split(rec.WorkingDays, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		d, ok := entities.ParseWeekday(name)
		if !ok {
			return entities.Availability{}, apperrors.NewInvalidAvailabilityError(
				fmt.Sprintf("unknown working day %q", strings.TrimSpace(name)), nil)
		}
		days = days.Add(d)
	}

	start, err := entities.ParseClockTime(rec.StartTime)
	if err != nil {
		return entities.Availability{}, apperrors.NewInvalidAvailabilityError("invalid start time", err)
	}
	end, err := entities.ParseClockTime(rec.EndTime)
	if err != nil {
		return entities.Availability{}, apperrors.NewInvalidAvailabilityError("invalid end time", err)
	}
	if end.Before(start) {
		return entities.Availability{}, apperrors.NewInvalidAvailabilityError(
			fmt.Sprintf("start time %s is after end time %s", start, end), nil)
	}

	return entities.Availability{WorkingDays: days, Start: start, End: end}, nil
}

// GenerateSlots yields every slot start in [Start, End) stepping by
// StepMinutes, on each working day of the HorizonDays days beginning at today.
// The sequence is chronological and can be ranged over repeatedly.
func GenerateSlots(a entities.Availability, today entities.Date, opts Options) (iter.Seq[entities.Slot], error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if today.IsZero() {
		return nil, apperrors.NewValidationError("today is required")
	}

	return func(yield func(entities.Slot) bool) {
		if a.WorkingDays.IsEmpty() || !a.Start.Before(a.End) {
			return
		}
		for i := 0; i < opts.HorizonDays; i++ {
			day := today.AddDays(i)
			if !a.WorkingDays.Has(day.Weekday()) {
				continue
			}
			for m := a.Start.Minutes(); m < a.End.Minutes(); m += opts.StepMinutes {
				t, err := entities.ClockTimeFromMinutes(m)
				if err != nil {
					break
				}
				if !yield(entities.Slot{Date: day, Time: t}) {
					return
				}
			}
		}
	}, nil
}

// Generate parses rec and returns its slots.
func Generate(rec entities.AvailabilityRecord, today entities.Date, opts Options) (iter.Seq[entities.Slot], error) {
	a, err := Parse(rec)
	if err != nil {
		return nil, err
	}
	return GenerateSlots(a, today, opts)
}
