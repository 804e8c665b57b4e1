package application

import "time"

// ActivityTier classifies how often a session is synced. Lower tiers sync
// more often.
type ActivityTier int

const (
	TierHot ActivityTier = iota
	TierActive
	TierWarm
	TierStale
)

// tierRule maps activity younger than maxAge to a tier and its interval.
type tierRule struct {
	tier     ActivityTier
	name     string
	maxAge   time.Duration
	interval time.Duration
}

// tierRules is ordered from hottest to coldest. The last rule catches
// everything, including sessions with no activity at all.
var tierRules = []tierRule{
	{TierHot, "hot", time.Hour, 2 * time.Minute},
	{TierActive, "active", 24 * time.Hour, 5 * time.Minute},
	{TierWarm, "warm", 7 * 24 * time.Hour, 15 * time.Minute},
	{TierStale, "stale", 0, 30 * time.Minute},
}

func (t ActivityTier) rule() (tierRule, bool) {
	if t < 0 || int(t) >= len(tierRules) {
		return tierRule{}, false
	}
	return tierRules[t], true
}

func (t ActivityTier) String() string {
	if r, ok := t.rule(); ok {
		return r.name
	}
	return "unknown"
}

// Interval is how long the sync service waits between loads of a session in
// this tier. Unknown tiers use the active interval.
func (t ActivityTier) Interval() time.Duration {
	if r, ok := t.rule(); ok {
		return r.interval
	}
	return tierRules[TierActive].interval
}

// classifyActivity picks the tier for a session whose comments last changed at
// lastActivity. A zero time means the session has never seen activity.
func classifyActivity(lastActivity, now time.Time) ActivityTier {
	if lastActivity.IsZero() {
		return TierStale
	}
	age := now.Sub(lastActivity)
	for _, r := range tierRules {
		if r.maxAge == 0 || age < r.maxAge {
			return r.tier
		}
	}
	return TierStale
}

// sessionSchedule tracks per-session adaptive sync state.
type sessionSchedule struct {
	tier       ActivityTier
	nextSyncAt time.Time
	lastSynced time.Time
}

// ScheduleInfo is an exported view of a session's sync schedule.
type ScheduleInfo struct {
	Tier       ActivityTier
	NextSyncAt time.Time
	LastSynced time.Time
}

// nextSchedule computes the schedule that follows a sync completed at now.
// A session holding unpublished comments is never colder than TierActive:
// someone is reviewing it and remote replies should show up promptly.
func nextSchedule(lastActivity time.Time, unpublished bool, now time.Time) sessionSchedule {
	tier := classifyActivity(lastActivity, now)
	if unpublished && tier > TierActive {
		tier = TierActive
	}
	return sessionSchedule{
		tier:       tier,
		nextSyncAt: now.Add(tier.Interval()),
		lastSynced: now,
	}
}
