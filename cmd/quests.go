package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/ui/report"
)

var questsCmd = &cobra.Command{
	Use:   "quests",
	Short: "List, generate and claim quests",
}

var questsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible quests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := open(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.warm(ctx); err != nil {
			return err
		}
		if err := rt.flush(ctx); err != nil {
			return err
		}
		qs, err := rt.engine.GetActiveQuests(ctx, rt.user)
		if err != nil {
			return err
		}
		report.Quests(os.Stdout, qs, time.Now())
		return nil
	},
}

var questsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Replace open quests with a fresh set targeting weak skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := open(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.warm(ctx); err != nil {
			return err
		}
		qs, err := rt.engine.RegenerateQuests(ctx, rt.user)
		if err != nil {
			return err
		}
		if err := rt.flush(ctx); err != nil {
			return err
		}
		report.Quests(os.Stdout, qs, time.Now())
		return nil
	},
}

var questsClaimCmd = &cobra.Command{
	Use:   "claim ID",
	Short: "Claim a completable quest's reward (an id prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := open(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.warm(ctx); err != nil {
			return err
		}
		id, err := resolveQuestID(ctx, rt, args[0])
		if err != nil {
			return err
		}
		q, err := rt.engine.ClaimQuest(ctx, rt.user, id)
		if err != nil {
			return err
		}
		fmt.Printf("Claimed %q: +%d points\n", q.Title, q.RewardPoints)
		return nil
	},
}

func init() {
	questsCmd.AddCommand(questsListCmd)
	questsCmd.AddCommand(questsGenerateCmd)
	questsCmd.AddCommand(questsClaimCmd)
}

// resolveQuestID expands a unique id prefix to a full quest id.
func resolveQuestID(ctx context.Context, rt *runtime, prefix string) (string, error) {
	qs, err := rt.engine.GetActiveQuests(ctx, rt.user)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, q := range qs {
		if q.ID == prefix {
			return q.ID, nil
		}
		if strings.HasPrefix(q.ID, prefix) {
			matches = append(matches, q.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("quest %s: %w", prefix, quest.ErrQuestNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("quest id prefix %q is ambiguous (%d matches)", prefix, len(matches))
	}
}
