package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/platform/logger"
	"github.com/phrazzld/scry-vocab/internal/selection"
	"github.com/phrazzld/scry-vocab/internal/session"
	"github.com/phrazzld/scry-vocab/internal/task"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// syncInterval is how often deferred learning state writes are retried while
// a session is running.
const syncInterval = 10 * time.Second

// reviewLine is one JSON line of review output.
type reviewLine struct {
	Start    *session.StartResult `json:"start,omitempty"`
	Snapshot *session.Snapshot    `json:"snapshot,omitempty"`
	Summary  *session.Summary     `json:"summary,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func newReviewCmd(opts *rootOptions) *cobra.Command {
	var flags filterFlags

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Run an interactive review session",
		Long: `Starts a review session over the new and still-learning cards that match the
filters, then reads one command per line from standard input:

  f  flip the current card
  m  mark the current card mastered
  s  mark the current card still learning
  q  end the session

Every response is a JSON line. The session ends with a summary when the last card
is reviewed, on q, or at end of input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := flags.userID()
			if err != nil {
				return err
			}
			cfg, l, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			app, err := newApplication(ctx, cfg, l)
			if err != nil {
				return err
			}
			defer app.close(ctx)

			r := &reviewer{
				engine:     app.engine,
				dispatcher: app.dispatcher,
				userID:     userID,
				out:        json.NewEncoder(cmd.OutOrStdout()),
				logger:     l.With("user_id", userID.String()),
			}
			return r.run(ctx, flags.filter(), cmd.InOrStdin())
		},
	}

	flags.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// reviewer drives one session from line commands.
type reviewer struct {
	engine     *session.Engine
	dispatcher *task.StateWriteDispatcher
	userID     uuid.UUID
	out        *json.Encoder
	logger     *slog.Logger
}

func (r *reviewer) run(ctx context.Context, filter selection.Filter, in io.Reader) error {
	snap, res, err := r.engine.Start(ctx, r.userID, filter)
	if err != nil {
		return err
	}
	if !res.Started {
		return r.out.Encode(reviewLine{Start: &res})
	}
	if err := r.out.Encode(reviewLine{Start: &res, Snapshot: &snap}); err != nil {
		return err
	}

	ctx = logger.WithLogger(ctx, r.logger.With("session_id", snap.SessionID.String()))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := readLines(ctx, in)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return r.loop(gctx, lines)
	})
	g.Go(func() error {
		r.syncDeferred(gctx)
		return nil
	})
	return g.Wait()
}

// loop handles commands until the session ends.
func (r *reviewer) loop(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return r.finish(ctx)
		case line, ok := <-lines:
			if !ok {
				return r.finish(ctx)
			}
			done, err := r.handle(ctx, strings.ToLower(strings.TrimSpace(line)))
			if err != nil || done {
				return err
			}
		}
	}
}

// handle applies one command. It reports whether the session has ended.
func (r *reviewer) handle(ctx context.Context, command string) (bool, error) {
	var outcome domain.Outcome
	switch command {
	case "":
		return false, nil
	case "f", "flip":
		snap, err := r.engine.Flip(r.userID)
		if err != nil {
			return false, err
		}
		return false, r.out.Encode(reviewLine{Snapshot: &snap})
	case "m", "mastered":
		outcome = domain.OutcomeMastered
	case "s", "still_learning":
		outcome = domain.OutcomeStillLearning
	case "q", "quit":
		return true, r.finish(ctx)
	default:
		return false, r.out.Encode(reviewLine{Error: fmt.Sprintf("unknown command %q", command)})
	}

	_, snap, err := r.engine.RecordOutcome(ctx, r.userID, outcome)
	if err != nil {
		return false, err
	}
	if err := r.out.Encode(reviewLine{Snapshot: &snap}); err != nil {
		return false, err
	}
	if snap.State == session.StateCompleted {
		return true, r.finish(ctx)
	}
	return false, nil
}

// finish ends the session and prints its summary.
func (r *reviewer) finish(ctx context.Context) error {
	sum, ok := r.engine.Terminate(context.WithoutCancel(ctx), r.userID)
	if !ok {
		return nil
	}
	r.engine.Release(r.userID)
	return r.out.Encode(reviewLine{Summary: &sum})
}

// syncDeferred periodically requeues learning state writes that could not be
// saved, until ctx is done.
func (r *reviewer) syncDeferred(ctx context.Context) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.dispatcher.DeferredCount() == 0 {
				continue
			}
			n, err := r.dispatcher.Sync(ctx)
			if err != nil {
				r.logger.Warn("failed to requeue deferred learning states",
					"requeued", n,
					"error", err)
				continue
			}
			r.logger.Info("requeued deferred learning states", "count", n)
		}
	}
}

// readLines feeds lines of in to the returned channel until end of input or
// until ctx is done. A read blocked on a terminal only returns with the next line.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
