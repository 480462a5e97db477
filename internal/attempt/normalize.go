package attempt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harshilgor/testtaker-sub001/internal/logging"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
)

// Raw is an attempt record as it arrives from any origin (drill, timed
// session, mock exam). Several origins name the same field differently.
type Raw struct {
	ID           string `json:"id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	QuestionID   string `json:"question_id,omitempty"`
	Skill        string `json:"skill,omitempty"`
	Topic        string `json:"topic,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
	Correct      *bool  `json:"correct,omitempty"`
	IsCorrect    *bool  `json:"is_correct,omitempty"`
	OccurredAt   string `json:"occurred_at,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	OccurredAtMs int64  `json:"occurred_at_ms,omitempty"`
	Source       string `json:"source,omitempty"`
}

// identityNamespace scopes derived attempt ids.
var identityNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://testtaker.app/attempt"))

// layouts without a zone are read in the normalizer's reference location.
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// Normalizer converts Raw records into Events. It has no side effects.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer returns a Normalizer that reads zone-less timestamps in loc.
// A nil loc means UTC.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Normalize converts raw into an Event using a UTC normalizer.
func Normalize(raw Raw) (Event, error) {
	return NewNormalizer(time.UTC).Normalize(raw)
}

// Normalize converts raw into an Event. It returns *ErrMalformedEvent when
// the skill is missing or the timestamp cannot be parsed.
func (n *Normalizer) Normalize(raw Raw) (Event, error) {
	skill := strings.TrimSpace(raw.Skill)
	if skill == "" {
		skill = strings.TrimSpace(raw.Topic)
	}
	if skill == "" || skills.Key(skill) == "" {
		return Event{}, malformed("skill", errors.New("empty skill"))
	}

	occurredAt, err := n.parseTime(raw)
	if err != nil {
		return Event{}, malformed("occurred_at", err)
	}

	difficulty, ok := ParseDifficulty(raw.Difficulty)
	if !ok {
		difficulty = DifficultyMedium
	}

	subject, ok := skills.ParseSubject(raw.Subject)
	if !ok {
		subject = skills.SubjectFor(skill)
	}

	correct := false
	switch {
	case raw.Correct != nil:
		correct = *raw.Correct
	case raw.IsCorrect != nil:
		correct = *raw.IsCorrect
	}

	ev := Event{
		ID:         strings.TrimSpace(raw.ID),
		Skill:      skill,
		Subject:    subject,
		Difficulty: difficulty,
		Correct:    correct,
		OccurredAt: occurredAt,
		Source:     ParseSource(raw.Source),
		SessionID:  strings.TrimSpace(raw.SessionID),
	}
	if ev.ID == "" {
		ev.ID = deriveID(ev, strings.TrimSpace(raw.QuestionID))
	}
	return ev, nil
}

func (n *Normalizer) parseTime(raw Raw) (time.Time, error) {
	for _, s := range []string{raw.OccurredAt, raw.CreatedAt, raw.Timestamp} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		return n.parseTimeString(s)
	}
	if raw.OccurredAtMs > 0 {
		return time.UnixMilli(raw.OccurredAtMs).UTC(), nil
	}
	return time.Time{}, errors.New("missing timestamp")
}

func (n *Normalizer) parseTimeString(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t.UTC(), nil
		}
	}
	// Bare integers are unix milliseconds.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// deriveID builds a stable identity so re-deliveries of the same attempt
// collapse onto one event.
func deriveID(ev Event, questionID string) string {
	name := strings.Join([]string{
		string(ev.Source),
		ev.SessionID,
		questionID,
		skills.Key(ev.Skill),
		ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		strconv.FormatBool(ev.Correct),
	}, "|")
	return uuid.NewSHA1(identityNamespace, []byte(name)).String()
}

// NormalizeAll normalizes every record, dropping and logging malformed ones.
// It returns the good events and the number dropped.
func (n *Normalizer) NormalizeAll(raws []Raw, log *logging.Logger) ([]Event, int) {
	log = logging.OrNop(log)
	events := make([]Event, 0, len(raws))
	dropped := 0
	for i, raw := range raws {
		ev, err := n.Normalize(raw)
		if err != nil {
			dropped++
			log.Warn("dropping malformed attempt", "index", i, "id", raw.ID, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, dropped
}
