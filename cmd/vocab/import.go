package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// cardNamespace derives stable IDs for cards imported without one, so that
// importing the same file twice reports duplicates instead of copying cards.
var cardNamespace = uuid.MustParse("6f1c2a8e-3d4b-5e6f-8a9b-0c1d2e3f4a5b")

// cardFile is the YAML layout accepted by the import command.
//
//	cards:
//	  - prompt: abate
//	    definition: to become less intense
//	    example: The storm abated overnight.
//	    difficulty: medium
//	    subject: english
type cardFile struct {
	Cards []cardRecord `yaml:"cards"`
}

type cardRecord struct {
	ID            string `yaml:"id"`
	Prompt        string `yaml:"prompt"`
	Definition    string `yaml:"definition"`
	Pronunciation string `yaml:"pronunciation"`
	Example       string `yaml:"example"`
	Difficulty    string `yaml:"difficulty"`
	Subject       string `yaml:"subject"`
}

// toCard converts r into a domain card created at createdAt.
func (r cardRecord) toCard(createdAt time.Time) (domain.Card, error) {
	difficulty, err := domain.ParseDifficulty(r.Difficulty)
	if err != nil {
		return domain.Card{}, fmt.Errorf("%w %q", err, r.Difficulty)
	}

	subject := strings.ToUpper(strings.TrimSpace(r.Subject))
	prompt := strings.TrimSpace(r.Prompt)

	id := uuid.NewSHA1(cardNamespace, []byte(subject+"\x00"+prompt))
	if r.ID != "" {
		if id, err = uuid.Parse(r.ID); err != nil {
			return domain.Card{}, fmt.Errorf("invalid id %q: %w", r.ID, err)
		}
	}

	card := domain.Card{
		ID:            id,
		Prompt:        prompt,
		Definition:    strings.TrimSpace(r.Definition),
		Pronunciation: strings.TrimSpace(r.Pronunciation),
		Example:       strings.TrimSpace(r.Example),
		Difficulty:    difficulty,
		Subject:       subject,
		CreatedAt:     createdAt,
	}
	if err := card.Validate(); err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// parseCardFile decodes a card file. Unknown keys are rejected. Cards keep
// the file's order through strictly increasing creation times.
func parseCardFile(r io.Reader, now time.Time) ([]domain.Card, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file cardFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("card file is empty")
		}
		return nil, fmt.Errorf("failed to parse card file: %w", err)
	}

	cards := make([]domain.Card, 0, len(file.Cards))
	for i, rec := range file.Cards {
		card, err := rec.toCard(now.Add(time.Duration(i) * time.Microsecond))
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i+1, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import vocabulary cards from a YAML file",
		Long: `Imports every card in FILE in a single transaction. If any card is invalid
or already exists, nothing is imported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open card file: %w", err)
			}
			defer func() { _ = f.Close() }()

			cards, err := parseCardFile(f, time.Now().UTC())
			if err != nil {
				return err
			}

			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := openDatabase(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			cardStore, _ := newStores(cfg, db, logger)
			if err := importCards(ctx, db, cardStore, cards); err != nil {
				return err
			}

			logger.Info("imported cards", "count", len(cards), "file", args[0])
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]int{"imported": len(cards)})
		},
	}
}

// importCards stores cards atomically.
func importCards(ctx context.Context, db *sql.DB, cardStore store.CardStore, cards []domain.Card) error {
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return cardStore.WithTx(tx).CreateMultiple(ctx, cards)
	})
	if err != nil {
		return fmt.Errorf("failed to import cards: %w", err)
	}
	return nil
}
