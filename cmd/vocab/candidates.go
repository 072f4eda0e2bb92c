package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/selection"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// filterFlags are the card filters shared by candidates and review.
type filterFlags struct {
	user       string
	subject    string
	difficulty string
	query      string
	status     string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.user, "user", "", "ID of the reviewing user (required)")
	fs.StringVar(&f.subject, "subject", "", "only cards of this subject")
	fs.StringVar(&f.difficulty, "difficulty", "", "only cards of this difficulty (easy, medium, hard)")
	fs.StringVar(&f.query, "query", "", "only cards whose prompt, definition or example contains this text")
	fs.StringVar(&f.status, "status", "", "only cards with this status (new, still_learning, mastered)")
}

func (f *filterFlags) userID() (uuid.UUID, error) {
	id, err := uuid.Parse(f.user)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user %q: %w", f.user, err)
	}
	return id, nil
}

// filter returns the selection filter. Invalid values are not rejected here;
// the engine ignores them and logs a warning.
func (f *filterFlags) filter() selection.Filter {
	return selection.Filter{
		Subject:    f.subject,
		Difficulty: f.difficulty,
		Query:      f.query,
		Status:     f.status,
	}
}

type candidatesOutput struct {
	Cards  []selection.AnnotatedCard `json:"cards"`
	Counts selection.Counts          `json:"counts"`
}

func newCandidatesCmd(opts *rootOptions) *cobra.Command {
	var flags filterFlags

	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List cards with their learning status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := flags.userID()
			if err != nil {
				return err
			}
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			app, err := newApplication(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.close(ctx)

			cards, counts, err := app.engine.Overview(ctx, userID, flags.filter())
			if err != nil {
				return err
			}
			if cards == nil {
				cards = []selection.AnnotatedCard{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(candidatesOutput{Cards: cards, Counts: counts})
		},
	}

	flags.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
