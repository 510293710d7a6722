// Package pension provides the domain models for a member's pension record
// and the assessment payloads the specialist workers produce from it.
package pension

// Record is one member's pension data row as the workers consume it.
type Record struct {
	SubjectID          string  `json:"subject_id"`
	Age                int     `json:"age"`
	Country            string  `json:"country"`
	AnnualIncome       float64 `json:"annual_income"`
	CurrentSavings     float64 `json:"current_savings"`
	RetirementAgeGoal  int     `json:"retirement_age_goal"`
	RiskTolerance      string  `json:"risk_tolerance"` // "Low", "Medium", "High"
	TotalAnnualContrib float64 `json:"total_annual_contribution"`
	AnnualReturnRate   float64 `json:"annual_return_rate"` // percent
	Volatility         float64 `json:"volatility"`
	FeesPercentage     float64 `json:"fees_percentage"`
	TransactionAmount  float64 `json:"transaction_amount"`
	SuspiciousFlag     bool    `json:"suspicious_flag"`
	AnomalyScore       float64 `json:"anomaly_score"`
	GeoLocation        string  `json:"geo_location"`
	HealthStatus       string  `json:"health_status"` // "Good", "Average", "Poor"
	DebtLevel          float64 `json:"debt_level"`
	PortfolioDiversity float64 `json:"portfolio_diversity_score"`
}

// RiskAssessment is the structured result of the risk worker.
type RiskAssessment struct {
	RiskLevel       string   `json:"risk_level"` // "Low", "Medium", "High"
	RiskScore       float64  `json:"risk_score"`
	PositiveFactors []string `json:"positive_factors"`
	RisksIdentified []string `json:"risks_identified"`
	Summary         string   `json:"summary"`
}

// FraudAssessment is the structured result of the fraud worker.
type FraudAssessment struct {
	IsFraudulent      bool     `json:"is_fraudulent"`
	ConfidenceScore   float64  `json:"confidence_score"`
	RulesTriggered    []string `json:"rules_triggered"`
	RecommendedAction string   `json:"recommended_action"`
}

// ProjectionOverview is the structured result of the projection worker.
// Monetary fields are currency formatted for display; the visualization step
// strips the formatting when it needs numbers back.
type ProjectionOverview struct {
	CurrentSavings        string  `json:"starting_balance"`
	ProjectedBalance      string  `json:"projected_balance"`
	RetirementGoal        string  `json:"retirement_goal"`
	ProgressToGoal        string  `json:"progress_to_goal"`
	Status                string  `json:"status"`
	ProjectionPeriodYears int     `json:"projection_period_years"`
	TargetRetirementAge   int     `json:"target_retirement_age"`
	SavingsRate           string  `json:"savings_rate"`
	AssumedAnnualReturn   float64 `json:"assumed_annual_return"`
}
