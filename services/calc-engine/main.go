package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"valuation_engine/pkg/core/assumption"
	"valuation_engine/pkg/core/config"
	"valuation_engine/pkg/core/scenario"
	"valuation_engine/pkg/core/store"
)

func main() {
	mode := flag.String("mode", "project", "Mode: project, simulate, sweep, lbo or ability")
	file := flag.String("file", "", "Scenario document (JSON or Hjson)")
	dataStr := flag.String("data", "", "Scenario document passed inline")
	format := flag.String("format", "text", "Output: text, markdown, html or json")
	configPath := flag.String("config", "", "Engine config (default "+config.DefaultPath+")")
	save := flag.Bool("save", false, "Store the run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := cfg.Logger(os.Stderr)

	doc, err := readDocument(*file, *dataStr)
	if err != nil {
		fail(log, err)
	}
	name := doc.Name
	if name == "" && *file != "" {
		name = strings.TrimSuffix(filepath.Base(*file), filepath.Ext(*file))
	}
	log = log.With().Str("scenario", name).Str("mode", *mode).Logger()
	log.Debug().Str("syntax", string(doc.Syntax)).Msg("Scenario parsed")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := run(ctx, *mode, title(name, *mode), doc, cfg, log)
	if err != nil {
		fail(log, err)
	}

	text, err := render(out, *format)
	if err != nil {
		fail(log, err)
	}
	fmt.Println(text)

	if *save {
		id, err := saveRun(ctx, cfg, log, name, out)
		if err != nil {
			fail(log, err)
		}
		log.Info().Str("id", id).Msg("Run saved")
	}
}

func readDocument(file, data string) (*scenario.Document, error) {
	switch {
	case data != "":
		return scenario.Parse([]byte(data))
	case file != "":
		return scenario.Load(file)
	}
	return nil, errors.New("no scenario provided: use -file or -data")
}

func title(name, mode string) string {
	if name == "" {
		return mode
	}
	return name + " " + mode
}

// fail prints every violation of an invalid input, then exits 1.
func fail(log zerolog.Logger, err error) {
	var invalid *assumption.InvalidError
	if errors.As(err, &invalid) {
		fmt.Fprintf(os.Stderr, "Invalid input (%d violations):\n", len(invalid.Violations))
		for _, v := range invalid.Violations {
			fmt.Fprintf(os.Stderr, "  - %s\n", v)
		}
		os.Exit(1)
	}
	log.Error().Err(err).Msg("Run failed")
	os.Exit(1)
}

// saveRun stores out in Postgres when configured, mirrored to the run
// directory. An unreachable database falls back to files only. The save
// ignores cancellation of ctx so an interrupted simulation keeps its partial run.
func saveRun(ctx context.Context, cfg *config.Config, log zerolog.Logger, name string, out *output) (string, error) {
	ctx = context.WithoutCancel(ctx)
	if cfg.Database.URL != "" {
		if err := store.InitDB(ctx, cfg.Database.URL); err != nil {
			log.Warn().Err(err).Msg("Database unavailable, saving to files only")
		} else {
			defer store.Close()
			if err := store.Migrate(ctx, store.GetPool()); err != nil {
				return "", err
			}
		}
	}

	runs, err := store.New(store.GetPool(), cfg.Store.Dir, log)
	if err != nil {
		return "", err
	}
	rec, err := store.NewRecord(out.kind, name, out.input, out.result)
	if err != nil {
		return "", err
	}
	if err := runs.Save(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}
