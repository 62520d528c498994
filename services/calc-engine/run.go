package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"valuation_engine/pkg/core/config"
	"valuation_engine/pkg/core/lbo"
	"valuation_engine/pkg/core/montecarlo"
	"valuation_engine/pkg/core/projection"
	"valuation_engine/pkg/core/report"
	"valuation_engine/pkg/core/scenario"
	"valuation_engine/pkg/core/sensitivity"
	"valuation_engine/pkg/core/store"
)

// output is one finished engine run.
type output struct {
	kind     store.Kind
	input    any
	result   any
	markdown string
}

func run(ctx context.Context, mode, title string, doc *scenario.Document, cfg *config.Config, log zerolog.Logger) (*output, error) {
	switch mode {
	case "project":
		as, err := doc.AssumptionSet()
		if err != nil {
			return nil, err
		}
		res, err := projection.Project(as)
		if err != nil {
			return nil, err
		}
		return &output{store.KindProjection, as.Input(), res, report.Projection(title, res)}, nil

	case "simulate":
		as, err := doc.AssumptionSet()
		if err != nil {
			return nil, err
		}
		mc := cfg.Simulation.Apply(doc.SimulationConfig(montecarlo.Config{}))
		progress := montecarlo.ObserverFunc(func(p montecarlo.Progress) {
			log.Debug().Int("completed", p.Completed).Int("total", p.Total).Dur("remaining", p.Remaining).Msg("Simulation progress")
		})
		res, err := montecarlo.Simulate(ctx, as, mc, progress)
		if err != nil {
			return nil, err
		}
		if !res.Complete {
			log.Warn().Int("completed", res.TrialsCompleted).Int("requested", res.TrialsRequested).Msg("Simulation cancelled, reporting partial result")
		}
		input := map[string]any{"assumptions": as.Input(), "monte_carlo": mc.WithSeed(res.Seed)}
		return &output{store.KindSimulation, input, res, report.Simulation(title, res)}, nil

	case "sweep":
		as, err := doc.AssumptionSet()
		if err != nil {
			return nil, err
		}
		spec, err := doc.SweepSpec()
		if err != nil {
			return nil, err
		}
		res, err := sensitivity.Sweep(ctx, as, spec)
		if err != nil {
			return nil, err
		}
		input := map[string]any{"assumptions": as.Input(), "sweep": spec}
		return &output{store.KindSweep, input, res, report.Sweep(title, res)}, nil

	case "lbo":
		la, err := doc.LBOAssumptions()
		if err != nil {
			return nil, err
		}
		res, err := lbo.Returns(la)
		if err != nil {
			return nil, err
		}
		return &output{store.KindLBO, la.Input(), res, report.LBO(title, res)}, nil

	case "ability":
		if doc.Ability == nil {
			return nil, fmt.Errorf("%w: ability_to_pay", scenario.ErrMissingSection)
		}
		res, err := lbo.AbilityToPay(*doc.Ability)
		if err != nil {
			return nil, err
		}
		return &output{store.KindAbilityToPay, doc.Ability, res, report.AbilityToPay(title, res)}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

func render(out *output, format string) (string, error) {
	switch format {
	case "text", "markdown":
		return out.markdown, nil
	case "html":
		return report.HTML(out.markdown)
	case "json":
		data, err := json.MarshalIndent(out.result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal result: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}
