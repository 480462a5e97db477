package quest

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/mastery"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
)

// WeakSkill is a skill selected for targeted practice.
type WeakSkill struct {
	Skill    string
	Subject  skills.Subject
	Accuracy float64
	Tier     mastery.Tier
	// Known is false for seed skills with no history.
	Known bool
}

// SeedSkills are the foundational skills targeted when a user has no weak
// skills yet.
var SeedSkills = []string{
	"Algebra",
	"Reading Comprehension",
	"Arithmetic",
	"Vocabulary",
	"Geometry",
	"Data Analysis",
	"Grammar",
}

// WeakSkills ranks skills with enough attempts and low accuracy, weakest
// first with ties broken by label, capped at cfg.MaxWeak.
func WeakSkills(stats []mastery.SkillStat, cfg Config) []WeakSkill {
	cfg = cfg.withDefaults()
	var weak []WeakSkill
	for _, s := range stats {
		if s.Attempts < cfg.MinAttempts {
			continue
		}
		acc := s.Accuracy()
		if acc >= cfg.WeakAccuracy {
			continue
		}
		weak = append(weak, WeakSkill{
			Skill:    s.Skill,
			Subject:  s.Subject,
			Accuracy: acc,
			Tier:     s.Tier,
			Known:    true,
		})
	}
	sort.SliceStable(weak, func(i, j int) bool {
		if weak[i].Accuracy != weak[j].Accuracy {
			return weak[i].Accuracy < weak[j].Accuracy
		}
		return weak[i].Skill < weak[j].Skill
	})
	if len(weak) > cfg.MaxWeak {
		weak = weak[:cfg.MaxWeak]
	}
	return weak
}

func seedSkills(stats []mastery.SkillStat) []WeakSkill {
	out := make([]WeakSkill, 0, len(SeedSkills))
	for _, name := range SeedSkills {
		ws := WeakSkill{Skill: name, Subject: skills.SubjectFor(name), Tier: mastery.TierNovice}
		for _, s := range stats {
			if skills.Match(name, s.Skill) {
				ws.Tier = s.Tier
				break
			}
		}
		out = append(out, ws)
	}
	return out
}

// Plan is the outcome of one generation pass.
type Plan struct {
	// Retired are ids of existing quests to remove.
	Retired []string
	// Kept are existing quests that survive the pass.
	Kept []Quest
	// Created are the new quests to insert.
	Created []Quest
}

// Quests returns the resulting quest list: kept quests followed by created ones.
func (p Plan) Quests() []Quest {
	out := make([]Quest, 0, len(p.Kept)+len(p.Created))
	out = append(out, p.Kept...)
	return append(out, p.Created...)
}

// NeedsGeneration reports whether the user has no open quests at now.
func NeedsGeneration(qs []Quest, now time.Time) bool {
	for _, q := range qs {
		if q.Open(now) {
			return false
		}
	}
	return true
}

// Generate runs one replace-all generation pass. Existing quests are retired
// except completed quests inside the retention window and unexpired
// completable quests. The cap counts the kept open quests before new ones are
// added, and the new batch is clamped to fit. newID may be nil.
func Generate(existing []Quest, stats []mastery.SkillStat, now time.Time, loc *time.Location, cfg Config, newID func() string) Plan {
	cfg = cfg.withDefaults()
	if loc == nil {
		loc = time.UTC
	}
	if newID == nil {
		newID = uuid.NewString
	}

	var plan Plan
	open := 0
	targeted := make(map[string]bool)
	for _, q := range existing {
		switch {
		case q.Status(now) == StatusCompletable:
			plan.Kept = append(plan.Kept, q)
			targeted[skills.Key(q.TargetSkill)] = true
			open++
		case q.Completed && withinRetention(q, now, cfg.CompletedRetention):
			plan.Kept = append(plan.Kept, q)
		default:
			plan.Retired = append(plan.Retired, q.ID)
		}
	}

	room := cfg.MaxActive - open
	if room <= 0 {
		return plan
	}

	targets := WeakSkills(stats, cfg)
	if len(targets) == 0 {
		targets = seedSkills(stats)
	}

	daily := 0
	for _, ws := range targets {
		if len(plan.Created) >= room {
			break
		}
		if targeted[skills.Key(ws.Skill)] {
			continue
		}
		typ := TypeWeekly
		if daily < cfg.DailyCount {
			typ = TypeDaily
			daily++
		}
		plan.Created = append(plan.Created, build(ws, typ, now, loc, cfg, newID()))
	}
	return plan
}

// Floor returns the minimum difficulty a quest for ws counts.
func Floor(ws WeakSkill, cfg Config) attempt.Difficulty {
	cfg = cfg.withDefaults()
	if ws.Known && ws.Accuracy < cfg.UrgentAccuracy {
		return attempt.DifficultyEasy
	}
	switch ws.Tier {
	case mastery.TierGod:
		return attempt.DifficultyHard
	case mastery.TierPro:
		return attempt.DifficultyMedium
	default:
		return attempt.DifficultyEasy
	}
}

// EndOfDay returns 23:59:59 of now's date in loc.
func EndOfDay(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}

func weeklyWindow(ws WeakSkill, cfg Config) time.Duration {
	const day = 24 * time.Hour
	switch {
	case !ws.Known:
		return 7 * day
	case ws.Accuracy < cfg.UrgentAccuracy:
		return 3 * day
	case ws.Accuracy < cfg.ModerateAccuracy:
		return 7 * day
	default:
		return 14 * day
	}
}

var rewardBase = map[attempt.Difficulty]int{
	attempt.DifficultyEasy:   20,
	attempt.DifficultyMedium: 30,
	attempt.DifficultyHard:   50,
}

func build(ws WeakSkill, typ Type, now time.Time, loc *time.Location, cfg Config, id string) Quest {
	floor := Floor(ws, cfg)
	q := Quest{
		ID:          id,
		TargetSkill: ws.Skill,
		Difficulty:  floor,
		Type:        typ,
		CreatedAt:   now,
	}
	switch typ {
	case TypeDaily:
		q.TargetCount = cfg.DailyTarget
		q.ExpiresAt = EndOfDay(now, loc)
		q.RewardPoints = rewardBase[floor]
		q.Title = fmt.Sprintf("Daily: %s", ws.Skill)
		q.Description = fmt.Sprintf("Answer %d %s questions correctly (%s or harder) today.",
			q.TargetCount, ws.Skill, floor)
	default:
		q.TargetCount = cfg.WeeklyTarget
		q.ExpiresAt = now.Add(weeklyWindow(ws, cfg))
		q.RewardPoints = rewardBase[floor] * 5
		q.Title = fmt.Sprintf("Weekly: %s", ws.Skill)
		q.Description = fmt.Sprintf("Answer %d %s questions correctly (%s or harder) by %s.",
			q.TargetCount, ws.Skill, floor, q.ExpiresAt.In(loc).Format("Mon Jan 2"))
	}
	return q
}
