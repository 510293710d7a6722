package workers

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/domain/pension"
	"github.com/fundsage/FundSage/internal/port/database"
	"github.com/fundsage/FundSage/internal/port/worker"
)

// ToolProjectPension is the trace name recorded by the projection worker.
const ToolProjectPension = "project_pension"

// targetRetirementAge is the fixed horizon for the projection model.
const targetRetirementAge = 65

// Defaults substituted for missing record fields.
const (
	defaultAge        = 35
	defaultIncome     = 50000.0
	defaultReturnRate = 5.0
)

// Projection computes a comprehensive retirement outlook: projected balance
// at retirement, the goal under the 4% rule, and progress toward it.
type Projection struct {
	store database.Store
	log   *slog.Logger
}

// NewProjection creates the projection worker.
func NewProjection(store database.Store, log *slog.Logger) *Projection {
	return &Projection{store: store, log: log.With("worker", "projection")}
}

// Step reports the routing step this worker serves.
func (p *Projection) Step() flow.Step { return flow.StepProjection }

// Run fetches the member's record and produces the retirement overview.
func (p *Projection) Run(ctx context.Context, req worker.Request) (*worker.Result, error) {
	rec, err := p.store.GetPensionRecord(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("projection worker: fetch record: %w", err)
	}

	overview := projectPension(rec)

	p.log.InfoContext(ctx, "pension projection complete",
		"subject_id", req.SubjectID,
		"status", overview.Status,
		"projected_balance", overview.ProjectedBalance)

	text := fmt.Sprintf(
		"Projected balance at age %d is %s against a retirement goal of %s (%s of goal, status: %s). Current savings %s, savings rate %s, assumed annual return %.1f%%.",
		overview.TargetRetirementAge, overview.ProjectedBalance, overview.RetirementGoal,
		overview.ProgressToGoal, overview.Status, overview.CurrentSavings,
		overview.SavingsRate, overview.AssumedAnnualReturn)

	return traceResult(text, ToolProjectPension, req.SubjectID, overview)
}

func projectPension(rec *pension.Record) pension.ProjectionOverview {
	savings := rec.CurrentSavings
	contribution := rec.TotalAnnualContrib
	returnRate := rec.AnnualReturnRate
	if returnRate == 0 {
		returnRate = defaultReturnRate
	}
	age := rec.Age
	if age == 0 {
		age = defaultAge
	}
	income := rec.AnnualIncome
	if income == 0 {
		income = defaultIncome
	}

	years := targetRetirementAge - age
	if years < 0 {
		years = 0
	}

	// Retirement goal under the 4% rule: 25x annual expenses, with
	// expenses assumed at 80% of income.
	goal := income * 0.8 * 25

	progress := 0.0
	if goal > 0 {
		progress = math.Min(100, savings/goal*100)
	}

	var status string
	switch {
	case years <= 0:
		status = "At Retirement Age"
	case progress >= 80:
		status = "On Track"
	case progress >= 50:
		status = "Good Progress"
	default:
		status = "Needs Attention"
	}

	savingsRate := 0.0
	if income > 0 {
		savingsRate = contribution / income * 100
	}

	// Future value of current savings plus an ordinary annuity of the
	// annual contributions, compounded to the retirement horizon.
	projected := savings
	if years > 0 {
		r := returnRate / 100
		growth := math.Pow(1+r, float64(years))
		projected = savings * growth
		if r > 0 {
			projected += contribution * ((growth - 1) / r)
		} else {
			projected += contribution * float64(years)
		}
	}

	return pension.ProjectionOverview{
		CurrentSavings:        pension.FormatMoney(savings),
		ProjectedBalance:      pension.FormatMoney(projected),
		RetirementGoal:        pension.FormatMoney(goal),
		ProgressToGoal:        pension.FormatPercent(progress),
		Status:                status,
		ProjectionPeriodYears: years,
		TargetRetirementAge:   targetRetirementAge,
		SavingsRate:           fmt.Sprintf("%.0f%%", savingsRate),
		AssumedAnnualReturn:   returnRate,
	}
}
