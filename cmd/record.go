package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/mastery"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
	"github.com/harshilgor/testtaker-sub001/internal/ui/report"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one practice attempt",
	RunE:  runRecord,
}

func init() {
	recordCmd.Flags().String("skill", "", "Skill practiced (required)")
	recordCmd.Flags().Bool("correct", false, "The answer was correct")
	recordCmd.Flags().String("difficulty", "medium", "easy, medium or hard")
	recordCmd.Flags().String("source", "drill", "quiz, marathon, mockTest or drill")
	recordCmd.Flags().String("at", "", "When the attempt happened (default now)")
	recordCmd.Flags().String("id", "", "Attempt id (derived when empty)")
	recordCmd.Flags().String("session", "", "Session id")
	recordCmd.Flags().String("question", "", "Question id")
	_ = recordCmd.MarkFlagRequired("skill")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := open(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	flags := cmd.Flags()
	skill, _ := flags.GetString("skill")
	correct, _ := flags.GetBool("correct")
	difficulty, _ := flags.GetString("difficulty")
	source, _ := flags.GetString("source")
	at, _ := flags.GetString("at")
	id, _ := flags.GetString("id")
	session, _ := flags.GetString("session")
	question, _ := flags.GetString("question")

	raw := attempt.Raw{
		ID:         id,
		SessionID:  session,
		QuestionID: question,
		Skill:      skill,
		Difficulty: difficulty,
		Correct:    &correct,
		OccurredAt: at,
		Source:     source,
	}
	if at == "" {
		raw.OccurredAtMs = time.Now().UnixMilli()
	}
	ev, err := rt.normalizer.Normalize(raw)
	if err != nil {
		return err
	}

	if err := rt.engine.Warm(ctx, rt.user); err != nil {
		return err
	}
	if err := rt.engine.RecordOptimisticAttempt(ctx, rt.user, ev); err != nil {
		return err
	}
	if err := rt.flush(ctx); err != nil {
		return err
	}

	snap, err := rt.engine.Snapshot(ctx, rt.user)
	if err != nil {
		return err
	}
	for _, m := range snap.Mastery {
		if skills.Key(m.Skill) == ev.SkillKey() {
			report.Mastery(os.Stdout, []mastery.SkillMasteryState{m})
		}
	}
	fmt.Printf("Recorded %s (%s)\n", ev.ID, ev.OccurredAt.Format("2006-01-02 15:04"))
	return nil
}
