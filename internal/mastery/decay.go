package mastery

import "time"

const (
	// ProThreshold is the inclusive lower bound of the pro tier.
	ProThreshold = 1000
	// GodThreshold is the inclusive lower bound of the god tier. Experience at
	// or above it never decays.
	GodThreshold = 2000
	// DecayGraceDays is the number of idle days before decay starts.
	DecayGraceDays = 14
	// DecayPerDay is the experience lost per idle day past the grace period.
	DecayPerDay = 5
)

// Tier is the mastery classification derived from decayed experience.
type Tier string

const (
	TierNovice Tier = "novice"
	TierPro    Tier = "pro"
	TierGod    Tier = "god"
)

// DisplayName returns a human-readable label for the tier.
func (t Tier) DisplayName() string {
	switch t {
	case TierNovice:
		return "Novice"
	case TierPro:
		return "Pro"
	case TierGod:
		return "God"
	default:
		return string(t)
	}
}

// TierFor maps decayed experience to a tier. Thresholds are inclusive and are
// evaluated on the unclamped value, so negative experience is novice.
func TierFor(decayedXP int) Tier {
	switch {
	case decayedXP >= GodThreshold:
		return TierGod
	case decayedXP >= ProThreshold:
		return TierPro
	default:
		return TierNovice
	}
}

// IdleDays returns the whole days between last and now. A zero last or a now
// before last yields 0.
func IdleDays(last, now time.Time) int {
	if last.IsZero() || !now.After(last) {
		return 0
	}
	return int(now.Sub(last) / (24 * time.Hour))
}

// Decay returns rawXP adjusted for inactivity at now. Only the pro band
// [ProThreshold, GodThreshold) decays; experience below ProThreshold and at or
// above GodThreshold is returned unchanged. Stored experience is never modified.
func Decay(rawXP int, last, now time.Time) int {
	if rawXP < ProThreshold || rawXP >= GodThreshold {
		return rawXP
	}
	days := IdleDays(last, now)
	if days <= DecayGraceDays {
		return rawXP
	}
	return max(0, rawXP-DecayPerDay*(days-DecayGraceDays))
}
