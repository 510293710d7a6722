package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/fundsage/FundSage/internal/domain/chart"
	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/domain/pension"
	"github.com/fundsage/FundSage/internal/port/renderer"
	"github.com/fundsage/FundSage/internal/workers"
)

// Chart identifiers written by the visualizer.
const (
	ChartProjection = "projection"
	ChartRisk       = "risk"
	ChartFraud      = "fraud"
)

// FlagFraudulent is the auxiliary indicator recorded alongside the fraud chart.
const FlagFraudulent = "is_fraudulent"

// Visualizer derives chart descriptors from the ledger entries the workers
// produced this run. Every extraction rule is independent and best-effort:
// missing or malformed data skips that chart, never fails the step.
type Visualizer struct {
	renderer     renderer.Renderer // optional; nil disables rasterization
	defaultYears int
	log          *slog.Logger
}

// NewVisualizer creates the visualization step. renderer may be nil.
func NewVisualizer(r renderer.Renderer, defaultYears int, log *slog.Logger) *Visualizer {
	return &Visualizer{
		renderer:     r,
		defaultYears: defaultYears,
		log:          log.With("service", "visualizer"),
	}
}

// Visualize populates state.Charts, state.Images, state.Figures and
// state.Flags from the ledger, then appends a transcript note naming what
// was produced.
func (v *Visualizer) Visualize(ctx context.Context, state *flow.State) {
	if spec, fig, ok := v.projectionChart(state); ok {
		state.Charts[ChartProjection] = spec
		state.Figures[ChartProjection] = fig
	}
	if spec, fig, ok := v.riskChart(state); ok {
		state.Charts[ChartRisk] = spec
		state.Figures[ChartRisk] = fig
	}
	if spec, fig, flagged, ok := v.fraudChart(state); ok {
		state.Charts[ChartFraud] = spec
		state.Figures[ChartFraud] = fig
		state.Flags[FlagFraudulent] = flagged
	}

	v.render(ctx, state)

	names := make([]string, 0, len(state.Charts))
	for name := range state.Charts {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		state.Append(flow.RoleSystem, "No chartable data was found in the gathered results.")
		return
	}
	state.Append(flow.RoleSystem, fmt.Sprintf("Prepared %d chart(s): %s.", len(names), strings.Join(names, ", ")))
}

// firstObservation returns the earliest ledger observation for the named
// tool. First occurrence wins so re-invoked workers don't shift the charts.
func firstObservation(state *flow.State, tool string) (json.RawMessage, bool) {
	for i := range state.Ledger {
		if state.Ledger[i].Tool == tool && len(state.Ledger[i].Output) > 0 {
			return state.Ledger[i].Output, true
		}
	}
	return nil, false
}

func (v *Visualizer) projectionChart(state *flow.State) (chart.Spec, chart.PlotlyFigure, bool) {
	raw, ok := firstObservation(state, workers.ToolProjectPension)
	if !ok {
		return chart.Spec{}, chart.PlotlyFigure{}, false
	}

	var overview pension.ProjectionOverview
	if err := json.Unmarshal(raw, &overview); err != nil {
		v.log.Debug("projection observation not chartable", "error", err)
		return chart.Spec{}, chart.PlotlyFigure{}, false
	}

	start, err := pension.ParseMoney(overview.CurrentSavings)
	if err != nil {
		return chart.Spec{}, chart.PlotlyFigure{}, false
	}
	end, err := pension.ParseMoney(overview.ProjectedBalance)
	if err != nil {
		return chart.Spec{}, chart.PlotlyFigure{}, false
	}

	years := overview.ProjectionPeriodYears
	if years <= 0 {
		years = v.defaultYears
	}

	spec := chart.Line("Projected balance over time", "year", "Year", "balance", "Balance ($)",
		[]map[string]any{
			{"year": 0, "balance": start},
			{"year": years, "balance": end},
		})
	fig := chart.PlotlyFigure{
		Data: []chart.PlotlyTrace{{
			Type: "scatter",
			Mode: "lines+markers",
			Name: "Balance",
			X:    []any{0, years},
			Y:    []any{start, end},
		}},
		Layout: chart.PlotlyLayout{
			Title: "Projected balance over time",
			XAxis: &chart.PlotlyAxis{Title: "Year"},
			YAxis: &chart.PlotlyAxis{Title: "Balance ($)"},
		},
	}
	return spec, fig, true
}

func (v *Visualizer) riskChart(state *flow.State) (chart.Spec, chart.PlotlyFigure, bool) {
	raw, ok := firstObservation(state, workers.ToolRiskProfile)
	if !ok {
		return chart.Spec{}, chart.PlotlyFigure{}, false
	}

	var assessment pension.RiskAssessment
	if err := json.Unmarshal(raw, &assessment); err != nil {
		v.log.Debug("risk observation not chartable", "error", err)
		return chart.Spec{}, chart.PlotlyFigure{}, false
	}

	spec := chart.Bar("Risk score", "Risk Score", assessment.RiskScore, "Score")
	fig := chart.PlotlyFigure{
		Data: []chart.PlotlyTrace{{
			Type: "bar",
			Name: "Risk Score",
			X:    []any{"Risk Score"},
			Y:    []any{assessment.RiskScore},
		}},
		Layout: chart.PlotlyLayout{Title: "Risk score"},
	}
	return spec, fig, true
}

func (v *Visualizer) fraudChart(state *flow.State) (chart.Spec, chart.PlotlyFigure, bool, bool) {
	raw, ok := firstObservation(state, workers.ToolDetectFraud)
	if !ok {
		return chart.Spec{}, chart.PlotlyFigure{}, false, false
	}

	var assessment pension.FraudAssessment
	if err := json.Unmarshal(raw, &assessment); err != nil {
		v.log.Debug("fraud observation not chartable", "error", err)
		return chart.Spec{}, chart.PlotlyFigure{}, false, false
	}

	spec := chart.Bar("Fraud confidence", "Fraud Confidence", assessment.ConfidenceScore, "Confidence")
	fig := chart.PlotlyFigure{
		Data: []chart.PlotlyTrace{{
			Type: "bar",
			Name: "Fraud Confidence",
			X:    []any{"Fraud Confidence"},
			Y:    []any{assessment.ConfidenceScore},
		}},
		Layout: chart.PlotlyLayout{Title: "Fraud confidence"},
	}
	return spec, fig, assessment.IsFraudulent, true
}

// render rasterizes each chart to a PNG data URI. Rendering is optional;
// failures leave the descriptor without an image.
func (v *Visualizer) render(ctx context.Context, state *flow.State) {
	if v.renderer == nil {
		return
	}
	for name, spec := range state.Charts {
		png, err := v.renderer.Rasterize(ctx, spec)
		if err != nil {
			v.log.Debug("chart rasterization skipped", "chart", name, "error", err)
			continue
		}
		if len(png) == 0 {
			continue
		}
		state.Images[name] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	}
}
