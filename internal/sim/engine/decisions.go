package engine

// DecisionSet carries one team's decisions for the round, grouped by
// department. Nil module pointers mean no decisions for that department.
// Payload shape is validated upstream (internal/decisions); the engine only
// performs semantic checks and skips invalid entries with a warning.
type DecisionSet struct {
	Research *ResearchDecisions `json:"research,omitempty"`
	Patents  *PatentDecisions   `json:"patents,omitempty"`
	Products *ProductDecisions  `json:"products,omitempty"`
	Pricing  *PricingDecisions  `json:"pricing,omitempty"`
}

type ResearchDecisions struct {
	NewProjects        []NewProject `json:"new_projects,omitempty"`
	PlatformInvestment float64      `json:"platform_investment,omitempty"`
	PlatformSegments   []string     `json:"platform_segments,omitempty"`
}

type NewProject struct {
	TechID    string `json:"tech_id"`
	RiskLevel string `json:"risk_level"` // conservative | moderate | aggressive
}

type PatentDecisions struct {
	Filings         []string `json:"filings,omitempty"`          // tech ids
	LicenseRequests []string `json:"license_requests,omitempty"` // patent ids
	Challenges      []string `json:"challenges,omitempty"`       // patent ids
}

type ProductDecisions struct {
	NewProducts []NewProduct `json:"new_products,omitempty"`
	Discontinue []string     `json:"discontinue,omitempty"` // product ids
}

type NewProduct struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Segment    string             `json:"segment"`
	Features   map[string]float64 `json:"features"`
	Price      float64            `json:"price"`
	PlatformID string             `json:"platform_id,omitempty"`
}

type PricingDecisions struct {
	Prices map[string]float64 `json:"prices,omitempty"` // product id -> price
}
