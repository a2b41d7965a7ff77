package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mockify/interviewstats/internal/store"
	"github.com/mockify/interviewstats/internal/transcript"
)

// PruneFilter selects sessions to delete. Every set field must
// match.
type PruneFilter struct {
	Company     string
	Category    string
	Before      string // YYYY-MM-DD, UTC
	Unscored    bool
	MaxMessages *int
}

// HasFilters reports whether any criterion is set.
func (f PruneFilter) HasFilters() bool {
	return f.Company != "" || f.Category != "" || f.Before != "" ||
		f.Unscored || f.MaxMessages != nil
}

// Matches reports whether s satisfies every set criterion. With
// Before set, sessions whose timestamp does not parse never
// match.
func (f PruneFilter) Matches(s transcript.Session, before time.Time) bool {
	if f.Company != "" && s.Company != f.Company {
		return false
	}
	if f.Category != "" && s.CategoryOrMixed() != f.Category {
		return false
	}
	if f.Before != "" {
		ts, ok := s.Time()
		if !ok || !ts.Before(before) {
			return false
		}
	}
	if f.Unscored {
		if _, ok := s.Score(); ok {
			return false
		}
	}
	if f.MaxMessages != nil && len(s.Messages) > *f.MaxMessages {
		return false
	}
	return true
}

// PruneConfig holds parsed CLI options for the prune command.
type PruneConfig struct {
	Filter PruneFilter
	DryRun bool
	Yes    bool
}

func parsePruneFlags(args []string) (PruneConfig, error) {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	company := fs.String(
		"company", "",
		"Sessions for this company",
	)
	category := fs.String(
		"category", "",
		"Sessions in this category",
	)
	before := fs.String(
		"before", "",
		"Sessions recorded before this date (YYYY-MM-DD)",
	)
	unscored := fs.Bool(
		"unscored", false,
		"Sessions without a feedback score",
	)
	maxMessages := fs.Int(
		"max-messages", -1,
		"Sessions with at most N messages",
	)
	dryRun := fs.Bool(
		"dry-run", false,
		"Show what would be pruned without deleting",
	)
	yes := fs.Bool(
		"yes", false,
		"Skip confirmation prompt",
	)

	if err := fs.Parse(args); err != nil {
		return PruneConfig{}, err
	}

	if *maxMessages < 0 && *maxMessages != -1 {
		return PruneConfig{}, fmt.Errorf("max-messages must be >= 0")
	}
	if *before != "" {
		if _, err := time.Parse(time.DateOnly, *before); err != nil {
			return PruneConfig{}, fmt.Errorf(
				"invalid --before date %q: use YYYY-MM-DD", *before,
			)
		}
	}

	var mm *int
	if *maxMessages != -1 {
		mm = maxMessages
	}

	cfg := PruneConfig{
		Filter: PruneFilter{
			Company:     *company,
			Category:    *category,
			Before:      *before,
			Unscored:    *unscored,
			MaxMessages: mm,
		},
		DryRun: *dryRun,
		Yes:    *yes,
	}

	if !cfg.Filter.HasFilters() {
		return PruneConfig{}, fmt.Errorf(
			"at least one filter is required\n" +
				"use --company, --category, --before," +
				" --unscored, or --max-messages",
		)
	}

	return cfg, nil
}

// Pruner executes the prune workflow against a repository.
type Pruner struct {
	Repo *store.Repository
	Out  io.Writer
	In   io.Reader
}

// Prune finds matching sessions and deletes them.
func (p *Pruner) Prune(ctx context.Context, cfg PruneConfig) error {
	if !cfg.Filter.HasFilters() {
		return fmt.Errorf(
			"at least one filter is required " +
				"(refusing to prune all sessions)",
		)
	}

	var before time.Time
	if cfg.Filter.Before != "" {
		var err error
		before, err = time.Parse(time.DateOnly, cfg.Filter.Before)
		if err != nil {
			return fmt.Errorf("invalid before date: %w", err)
		}
	}

	sessions, err := p.Repo.LoadSessions(ctx)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}
	var candidates []transcript.Session
	for _, s := range sessions {
		if cfg.Filter.Matches(s, before) {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		fmt.Fprintln(p.Out,
			"No sessions match the given filters.")
		return nil
	}

	writeSummary(p.Out, candidates)

	if cfg.DryRun {
		fmt.Fprintln(p.Out, "\nDry run: no changes made.")
		return nil
	}

	if !cfg.Yes {
		msg := fmt.Sprintf(
			"\nDelete %d sessions?", len(candidates),
		)
		if !confirm(p.In, p.Out, msg) {
			fmt.Fprintln(p.Out, "Aborted.")
			return nil
		}
	}

	ids := make([]string, len(candidates))
	for i, s := range candidates {
		ids[i] = s.ID
	}

	deleted, err := p.Repo.DeleteSessions(ctx, ids)
	if err != nil {
		return fmt.Errorf("deleting sessions: %w", err)
	}

	fmt.Fprintf(p.Out,
		"\nDeleted %d sessions. Rebuild the word bank to drop their keywords.\n",
		deleted,
	)
	return nil
}

func confirm(r io.Reader, w io.Writer, msg string) bool {
	fmt.Fprintf(w, "%s [y/N] ", msg)
	scanner := bufio.NewScanner(r)
	scanner.Scan()
	ans := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return ans == "y" || ans == "yes"
}

func writeSummary(w io.Writer, sessions []transcript.Session) {
	byCompany := map[string]int{}
	var companies []string
	for _, s := range sessions {
		c := s.Company
		if c == "" {
			c = "(none)"
		}
		if byCompany[c] == 0 {
			companies = append(companies, c)
		}
		byCompany[c]++
	}

	sort.Strings(companies)

	fmt.Fprintf(w, "Found %d sessions\n", len(sessions))
	fmt.Fprintln(w, "\nBy company:")
	for _, c := range companies {
		fmt.Fprintf(w, "  %-40s %d\n", c, byCompany[c])
	}
}

func runPrune(args []string) {
	cfg, err := parsePruneFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	repo, closeFn := mustOpenRepo()
	defer closeFn()

	pruner := &Pruner{
		Repo: repo,
		Out:  os.Stdout,
		In:   os.Stdin,
	}
	if err := pruner.Prune(context.Background(), cfg); err != nil {
		log.Fatalf("prune: %v", err)
	}
}
