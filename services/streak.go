package services

import "time"

// MaxStreakReward caps the base XP of a daily check-in.
const MaxStreakReward = 30

// StreakOutcome is the result of a permitted check-in.
type StreakOutcome struct {
	Streak int
	BaseXP int64
}

// NextStreak computes the streak after a check-in at now. Days are UTC calendar
// days. A check-in on a day that already has one is rejected.
func NextStreak(now time.Time, lastCheckInAt *time.Time, currentStreak int) (StreakOutcome, error) {
	streak := 1
	if lastCheckInAt != nil {
		today := utcDay(now)
		lastDay := utcDay(*lastCheckInAt)
		switch {
		case !lastDay.Before(today):
			return StreakOutcome{}, ErrAlreadyCheckedInToday
		case lastDay.Equal(today.AddDate(0, 0, -1)):
			streak = currentStreak + 1
		}
	}

	base := int64(streak)
	if base > MaxStreakReward {
		base = MaxStreakReward
	}
	return StreakOutcome{Streak: streak, BaseXP: base}, nil
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
