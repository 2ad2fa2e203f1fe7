package schedule

import (
	"fmt"
	"time"
)

// Closest finds the job nearest the reference instant under the given
// strategy, considering only jobs whose tags intersect the filter
// (empty filter = all jobs) and whose due time falls inside the
// eligibility window around ref.
//
// The window is the reference day in ref's location: local midnight to
// the following midnight. With allowOverlap it widens one day on each
// side, which lets late-evening schedules match shortly after midnight.
//
// Returns ErrNotFound when no job qualifies; callers decide whether
// that is an error or simply "nothing to do today".
func (s *Scheduler) Closest(ref time.Time, tags []string, strategy Strategy, allowOverlap bool) (JobInfo, error) {
	s.mu.Lock()
	var candidates []JobInfo
	for _, j := range s.jobs {
		if !matchesTags(j.tags, tags) {
			continue
		}
		if !inDayWindow(j.dueAt, ref, allowOverlap) {
			continue
		}
		candidates = append(candidates, j.info())
	}
	s.mu.Unlock()

	var past, future *JobInfo
	for i := range candidates {
		c := &candidates[i]
		if !c.DueAt.After(ref) {
			// Most recent past job wins.
			if past == nil || c.DueAt.After(past.DueAt) {
				past = c
			}
		} else {
			// Earliest future job wins.
			if future == nil || c.DueAt.Before(future.DueAt) {
				future = c
			}
		}
	}

	var pick *JobInfo
	switch strategy {
	case StrategyPrev:
		pick = past
	case StrategyNext:
		pick = future
	case StrategyPrevNext:
		pick = past
		if pick == nil {
			pick = future
		}
	default:
		return JobInfo{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	if pick == nil {
		return JobInfo{}, ErrNotFound
	}
	return *pick, nil
}

// inDayWindow reports whether t falls inside the eligibility window
// around ref. Window boundaries are local midnights in ref's location,
// so the window tracks the civil day rather than a fixed 24h span.
func inDayWindow(t, ref time.Time, allowOverlap bool) bool {
	loc := ref.Location()
	start := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	if allowOverlap {
		start = start.AddDate(0, 0, -1)
		end = end.AddDate(0, 0, 1)
	}
	return !t.Before(start) && t.Before(end)
}
