// Package scenario reads scenario documents: one file bundling the inputs of
// every engine run for a company. Documents may be strict JSON, damaged JSON,
// or Hjson written by hand.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"

	"valuation_engine/pkg/core/assumption"
	"valuation_engine/pkg/core/lbo"
	"valuation_engine/pkg/core/montecarlo"
	"valuation_engine/pkg/core/sensitivity"
)

// ErrMissingSection is returned when a run needs a section the document lacks.
var ErrMissingSection = errors.New("scenario section missing")

// Syntax records which parsing strategy accepted a document.
type Syntax string

const (
	SyntaxJSON     Syntax = "json"
	SyntaxRepaired Syntax = "repaired_json"
	SyntaxHJSON    Syntax = "hjson"
)

// Document is a scenario file. Every section is optional; the run mode decides
// which ones must be present.
type Document struct {
	Name string `json:"name"`

	Assumptions *assumption.Input      `json:"assumptions,omitempty"`
	CAPM        *assumption.CAPMInput  `json:"capm,omitempty"` // derives wacc when assumptions.wacc is 0
	MonteCarlo  *montecarlo.Config     `json:"monte_carlo,omitempty"`
	Sweep       *sensitivity.Spec      `json:"sweep,omitempty"`
	LBO         *assumption.LBOInput   `json:"lbo,omitempty"`
	Ability     *lbo.AbilityToPayInput `json:"ability_to_pay,omitempty"`

	Syntax Syntax `json:"-"`
}

// Parse tries, in order: standard JSON, Hjson, JSON repair. A lenient parse
// only counts when it yields at least one recognised section.
func Parse(data []byte) (*Document, error) {
	var doc Document

	// Try 1: Standard JSON
	strictErr := json.Unmarshal(data, &doc)
	if strictErr == nil {
		doc.Syntax = SyntaxJSON
		return &doc, nil
	}

	// Try 2: Hjson. Numbers stay json.Number so large seeds survive the re-encode.
	var generic any
	opts := hjson.DefaultDecoderOptions()
	opts.UseJSONNumber = true
	if err := hjson.UnmarshalWithOptions(data, &generic, opts); err == nil {
		if normalized, err := json.Marshal(generic); err == nil {
			doc = Document{}
			if err := json.Unmarshal(normalized, &doc); err == nil && !doc.empty() {
				doc.Syntax = SyntaxHJSON
				return &doc, nil
			}
		}
	}

	// Try 3: JSON Repair
	if repaired, err := jsonrepair.RepairJSON(string(data)); err == nil {
		doc = Document{}
		if err := json.Unmarshal([]byte(repaired), &doc); err == nil && !doc.empty() {
			doc.Syntax = SyntaxRepaired
			return &doc, nil
		}
	}

	return nil, fmt.Errorf("parse scenario: all parsing strategies failed: %w", strictErr)
}

func (d *Document) empty() bool {
	return d.Name == "" && d.Assumptions == nil && d.CAPM == nil && d.MonteCarlo == nil &&
		d.Sweep == nil && d.LBO == nil && d.Ability == nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// AssumptionSet validates the assumptions section. When a CAPM section is
// present and no WACC was given, the WACC is built from it.
func (d *Document) AssumptionSet() (*assumption.AssumptionSet, error) {
	if d.Assumptions == nil {
		return nil, fmt.Errorf("%w: assumptions", ErrMissingSection)
	}
	in := *d.Assumptions
	if in.WACC == 0 && d.CAPM != nil {
		in.WACC = assumption.WACCFromCAPM(*d.CAPM).WACC
	}
	return assumption.New(in)
}

// LBOAssumptions validates the lbo section.
func (d *Document) LBOAssumptions() (*assumption.LBOAssumptions, error) {
	if d.LBO == nil {
		return nil, fmt.Errorf("%w: lbo", ErrMissingSection)
	}
	return assumption.NewLBO(*d.LBO)
}

// SimulationConfig returns the monte_carlo section, or fallback when absent.
func (d *Document) SimulationConfig(fallback montecarlo.Config) montecarlo.Config {
	if d.MonteCarlo == nil {
		return fallback
	}
	return *d.MonteCarlo
}

// SweepSpec returns the sweep section.
func (d *Document) SweepSpec() (sensitivity.Spec, error) {
	if d.Sweep == nil {
		return sensitivity.Spec{}, fmt.Errorf("%w: sweep", ErrMissingSection)
	}
	return *d.Sweep, nil
}
