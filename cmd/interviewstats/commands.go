package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/config"
	"github.com/mockify/interviewstats/internal/metrics"
	"github.com/mockify/interviewstats/internal/store"
	"github.com/mockify/interviewstats/internal/transcript"
	"github.com/mockify/interviewstats/internal/wordbank"
)

// Rebuild rebuilds the word bank over the sessions matching f and
// persists it.
func Rebuild(
	ctx context.Context, repo *store.Repository, f analytics.Filter,
	out io.Writer, now time.Time,
) error {
	if err := f.Validate(); err != nil {
		return err
	}
	snap, err := rebuildWordBank(ctx, repo, wordbank.NewCache(), f, now, "cli")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Word bank rebuilt: %d tokens from %d sessions\n",
		len(snap.Bank), snap.Provenance.SessionCount)
	return nil
}

func runRebuild(args []string) {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	var f analytics.Filter
	fs.StringVar(&f.StartDate, "start", "", "Only sessions on or after `YYYY-MM-DD`")
	fs.StringVar(&f.EndDate, "end", "", "Only sessions on or before `YYYY-MM-DD`")
	fs.StringVar(&f.Company, "company", "", "Only sessions for this company")
	fs.StringVar(&f.Category, "category", "", "Only sessions in this category")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}
	repo, closeFn := mustOpenRepo()
	defer closeFn()
	if err := Rebuild(context.Background(), repo, f, os.Stdout, time.Now()); err != nil {
		log.Fatalf("rebuild: %v", err)
	}
}

// Export writes the persisted word bank in the given format.
func Export(
	ctx context.Context, repo *store.Repository, format string, w io.Writer,
) error {
	exp, err := wordbank.NewExporter(format)
	if err != nil {
		return err
	}
	bank, _, err := repo.LoadWordBank(ctx)
	if err != nil {
		return err
	}
	return exp.Export(bank, w)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "json", "Output format: json or yaml")
	out := fs.String("o", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	repo, closeFn := mustOpenRepo()
	defer closeFn()

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("creating %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}
	if err := Export(context.Background(), repo, *format, w); err != nil {
		log.Fatalf("export: %v", err)
	}
}

// Import appends the sessions in each file. A file that fails to
// parse or collides with a stored id is reported and skipped.
// It returns the number of sessions added.
func Import(
	ctx context.Context, repo *store.Repository, paths []string, out io.Writer,
) (int, error) {
	if len(paths) == 0 {
		return 0, errors.New("no input files")
	}
	total := 0
	var failed []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", p, err)
			failed = append(failed, p)
			continue
		}
		batch, err := transcript.DecodeBatch(data)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", p, err)
			failed = append(failed, p)
			continue
		}
		ids, err := repo.AppendSessions(ctx, batch...)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", p, err)
			failed = append(failed, p)
			continue
		}
		metrics.RecordIngested("import", len(ids))
		fmt.Fprintf(out, "%s: %d sessions\n", p, len(ids))
		total += len(ids)
	}
	if len(failed) > 0 {
		return total, fmt.Errorf(
			"%d of %d files failed: %s",
			len(failed), len(paths), strings.Join(failed, ", "),
		)
	}
	return total, nil
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: interviewstats import FILE...")
	}
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}
	repo, closeFn := mustOpenRepo()
	defer closeFn()

	n, err := Import(context.Background(), repo, fs.Args(), os.Stdout)
	fmt.Printf("Imported %d sessions\n", n)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
}

// Score sets the feedback score of one session.
func Score(
	ctx context.Context, repo *store.Repository, args []string, out io.Writer,
) error {
	if len(args) != 2 {
		return errors.New("usage: interviewstats score ID SCORE")
	}
	v, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: %q", store.ErrInvalidScore, args[1])
	}
	if _, err := repo.UpdateFeedbackScore(ctx, args[0], v); err != nil {
		return err
	}
	fmt.Fprintf(out, "Session %s scored %s\n", args[0], args[1])
	return nil
}

func runScore(args []string) {
	repo, closeFn := mustOpenRepo()
	defer closeFn()
	if err := Score(context.Background(), repo, args, os.Stdout); err != nil {
		log.Fatalf("score: %v", err)
	}
}

// UpdateSettings applies explicitly set flags to cfg, validates
// and saves it. With no flags set it only prints cfg.
func UpdateSettings(cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(out)
	halfLife := fs.Float64("half-life", cfg.HalfLifeDays,
		"Recency weighting half-life in days")
	matcher := fs.String("matcher", cfg.Matcher,
		"Keyword matcher: "+strings.Join(wordbank.MatcherNames, ", "))
	inboxDir := fs.String("inbox", cfg.InboxDir,
		"Directory to watch for session JSON files")
	schedule := fs.String("rebuild-schedule", cfg.RebuildSchedule,
		"Cron spec for scheduled word bank rebuilds")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NFlag() > 0 {
		cfg.HalfLifeDays = *halfLife
		cfg.Matcher = *matcher
		cfg.InboxDir = *inboxDir
		cfg.RebuildSchedule = *schedule
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.SaveSettings(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Settings saved.")
	}

	fmt.Fprintf(out, "data_dir:         %s\n", cfg.DataDir)
	fmt.Fprintf(out, "half_life_days:   %g\n", cfg.HalfLifeDays)
	fmt.Fprintf(out, "matcher:          %s\n", cfg.Matcher)
	fmt.Fprintf(out, "inbox_dir:        %s\n", orNone(cfg.InboxDir))
	fmt.Fprintf(out, "rebuild_schedule: %s\n", orNone(cfg.RebuildSchedule))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func runConfig(args []string) {
	cfg, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := UpdateSettings(cfg, args, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("config: %v", err)
	}
}
