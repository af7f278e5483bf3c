package models

import "time"

// ServiceEnd is implemented by per-type completion projections. The second
// return is false when the end moment cannot be determined, in which case the
// scheduler leaves the booking alone.
type ServiceEnd interface {
	ServiceEndMoment() (time.Time, bool)
}

// TourCompletion projects a confirmed tour booking onto its tour end date
type TourCompletion struct {
	EndDate time.Time
}

func (c TourCompletion) ServiceEndMoment() (time.Time, bool) {
	if c.EndDate.IsZero() {
		return time.Time{}, false
	}
	return c.EndDate, true
}

// FlightLegArrival carries the two possible arrival moments for one booked
// leg. ScheduleArrival comes from the flight_schedules row whose date matches
// the template's calendar day; when present it wins over the template.
type FlightLegArrival struct {
	TemplateArrival time.Time
	ScheduleArrival *time.Time
}

// EffectiveArrival picks the schedule arrival when one exists
func (l FlightLegArrival) EffectiveArrival() time.Time {
	if l.ScheduleArrival != nil && !l.ScheduleArrival.IsZero() {
		return *l.ScheduleArrival
	}
	return l.TemplateArrival
}

// FlightCompletion projects a confirmed flight booking onto the latest
// arrival among its legs, so round trips only complete after the return leg
type FlightCompletion struct {
	Legs []FlightLegArrival
}

func (c FlightCompletion) ServiceEndMoment() (time.Time, bool) {
	var latest time.Time
	for _, leg := range c.Legs {
		arr := leg.EffectiveArrival()
		if arr.IsZero() {
			continue
		}
		if arr.After(latest) {
			latest = arr
		}
	}
	if latest.IsZero() {
		return time.Time{}, false
	}
	return latest, true
}

// ActivityCompletion projects a confirmed activity booking onto the end of
// its scheduled participation day
type ActivityCompletion struct {
	ScheduledDate time.Time
}

func (c ActivityCompletion) ServiceEndMoment() (time.Time, bool) {
	if c.ScheduledDate.IsZero() {
		return time.Time{}, false
	}
	// the activity runs through its scheduled day
	y, m, d := c.ScheduledDate.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, c.ScheduledDate.Location()), true
}
