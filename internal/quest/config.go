package quest

import "time"

// Config tunes quest generation.
type Config struct {
	// MaxActive caps open (active or completable) quests per user.
	MaxActive int
	// MaxWeak caps how many weak skills one generation pass targets.
	MaxWeak int
	// DailyCount is how many of the generated quests are daily.
	DailyCount int
	// MinAttempts is the attempt count a skill needs before it can be weak.
	MinAttempts int
	// WeakAccuracy is the accuracy below which a skill is weak.
	WeakAccuracy float64
	// UrgentAccuracy marks weak skills that get the shortest weekly window
	// and an easy difficulty floor.
	UrgentAccuracy float64
	// ModerateAccuracy marks weak skills that get the medium weekly window.
	ModerateAccuracy float64
	// CompletedRetention is how long completed quests stay visible.
	CompletedRetention time.Duration
	DailyTarget        int
	WeeklyTarget       int
}

// DefaultConfig returns the standard generation settings.
func DefaultConfig() Config {
	return Config{
		MaxActive:          12,
		MaxWeak:            7,
		DailyCount:         5,
		MinAttempts:        3,
		WeakAccuracy:       0.75,
		UrgentAccuracy:     0.50,
		ModerateAccuracy:   0.65,
		CompletedRetention: 24 * time.Hour,
		DailyTarget:        3,
		WeeklyTarget:       10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxActive <= 0 {
		c.MaxActive = d.MaxActive
	}
	if c.MaxWeak <= 0 {
		c.MaxWeak = d.MaxWeak
	}
	if c.DailyCount < 0 {
		c.DailyCount = d.DailyCount
	}
	if c.MinAttempts <= 0 {
		c.MinAttempts = d.MinAttempts
	}
	if c.WeakAccuracy <= 0 {
		c.WeakAccuracy = d.WeakAccuracy
	}
	if c.UrgentAccuracy <= 0 {
		c.UrgentAccuracy = d.UrgentAccuracy
	}
	if c.ModerateAccuracy <= 0 {
		c.ModerateAccuracy = d.ModerateAccuracy
	}
	if c.CompletedRetention <= 0 {
		c.CompletedRetention = d.CompletedRetention
	}
	if c.DailyTarget <= 0 {
		c.DailyTarget = d.DailyTarget
	}
	if c.WeeklyTarget <= 0 {
		c.WeeklyTarget = d.WeeklyTarget
	}
	return c
}
