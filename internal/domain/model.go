package domain

import "time"

// Core domain models shared by the scan pipeline. Persistence and HTTP shapes
// live in their adapters; keep these free of storage concerns.

// FormInput is the optional user-submitted context for a scan. Non-empty fields
// take precedence over what the profiler scrapes.
type FormInput struct {
	BrandName       string   `json:"brand_name,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	CoreProblem     string   `json:"core_problem,omitempty"`
	TargetBuyer     string   `json:"target_buyer,omitempty"`
	Differentiators []string `json:"differentiators,omitempty"`
	Competitors     []string `json:"competitors,omitempty"`
	BuyerQuestions  []string `json:"buyer_questions,omitempty"`
}

// Profile is the structured description of the scanned product.
// Built once per scan and treated as read-only afterwards.
type Profile struct {
	BrandName       string   `json:"brand_name"`
	Domain          string   `json:"domain"`
	Tagline         string   `json:"tagline,omitempty"`
	Category        string   `json:"category"`
	Subcategory     string   `json:"subcategory,omitempty"`
	TargetAudience  string   `json:"target_audience,omitempty"`
	CoreFeatures    []string `json:"core_features,omitempty"`
	PricingModel    string   `json:"pricing_model"`
	Competitors     []string `json:"competitors,omitempty"`
	Differentiators []string `json:"differentiators,omitempty"`
	UseCases        []string `json:"use_cases,omitempty"`
	Aliases         []string `json:"aliases"`

	CoreProblem         string   `json:"core_problem,omitempty"`
	TargetBuyer         string   `json:"target_buyer,omitempty"`
	UserDifferentiators []string `json:"user_differentiators,omitempty"`
	BuyerQuestions      []string `json:"buyer_questions,omitempty"`
}

type IntentCategory string

const (
	IntentDirectRecommendation IntentCategory = "direct_recommendation"
	IntentAlternatives         IntentCategory = "alternatives"
	IntentComparison           IntentCategory = "comparison"
	IntentProblemBased         IntentCategory = "problem_based"
	IntentFeatureBased         IntentCategory = "feature_based"
	IntentBudgetBased          IntentCategory = "budget_based"
	IntentUserProvided         IntentCategory = "user_provided"
)

type GeneratedQuery struct {
	Text     string         `json:"text"`
	Category IntentCategory `json:"category"`
}

type ValidatedQuery struct {
	Text        string         `json:"text"`
	Category    IntentCategory `json:"category"`
	Relevant    bool           `json:"is_relevant"`
	IntentScore int            `json:"intent_score"`
	BrandBiased bool           `json:"brand_biased"`
	Hash        string         `json:"hash"`
}

// QuerySet is the validated query batch stored once per scan.
type QuerySet struct {
	ScanID         string           `json:"scan_id"`
	Queries        []ValidatedQuery `json:"queries"`
	GeneratedCount int              `json:"generated_count"`
	ValidatedCount int              `json:"validated_count"`
}

type DetectionMethod string

const (
	MethodNone     DetectionMethod = ""
	MethodRegex    DetectionMethod = "regex"
	MethodAlias    DetectionMethod = "alias"
	MethodFuzzy    DetectionMethod = "fuzzy"
	MethodSemantic DetectionMethod = "semantic"
)

// DetectionResult describes whether one target was found in one response.
// Position is nil when the target appears only in unranked prose.
type DetectionResult struct {
	Target     string          `json:"target"`
	Detected   bool            `json:"detected"`
	Confidence float64         `json:"confidence"`
	Method     DetectionMethod `json:"method,omitempty"`
	Position   *int            `json:"position,omitempty"`
	Snippet    string          `json:"snippet,omitempty"`
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ResponseAnalysis is the unit the scoring engine consumes: one query answered
// by one provider.
type ResponseAnalysis struct {
	Query       ValidatedQuery    `json:"query"`
	Provider    string            `json:"provider"`
	Response    string            `json:"response"`
	Brand       DetectionResult   `json:"brand"`
	Competitors []DetectionResult `json:"competitors"`
	Sentiment   Sentiment         `json:"sentiment,omitempty"`
	Citations   []string          `json:"citations,omitempty"`
	BrandCited  bool              `json:"brand_cited"`
	AnalyzedAt  time.Time         `json:"analyzed_at"`
}

// DetectedCompetitors returns the competitor detections that fired.
func (a ResponseAnalysis) DetectedCompetitors() []DetectionResult {
	var out []DetectionResult
	for _, c := range a.Competitors {
		if c.Detected {
			out = append(out, c)
		}
	}
	return out
}

type ProviderScore struct {
	Provider      string    `json:"provider"`
	Score         int       `json:"score"`
	MentionRate   float64   `json:"mention_rate"`
	PositionScore float64   `json:"position_score"`
	IntentScore   float64   `json:"intent_score"`
	DensityFactor float64   `json:"density_factor"`
	Sentiment     Sentiment `json:"sentiment"`
	Responses     int       `json:"responses"`
	Mentions      int       `json:"mentions"`
}

type ScoringBreakdown struct {
	MentionRate   float64                  `json:"mention_rate"`
	PositionScore float64                  `json:"position_score"`
	IntentScore   float64                  `json:"intent_score"`
	Consistency   float64                  `json:"consistency"`
	DensityFactor float64                  `json:"density_factor"`
	RawScore      float64                  `json:"raw_score"`
	FinalScore    int                      `json:"final_score"`
	Providers     map[string]ProviderScore `json:"providers"`
	TotalQueries  int                      `json:"total_queries"`
	TotalAnalyses int                      `json:"total_analyses"`
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
	TrendNew    Trend = "new"
)

// UnrankedPosition is the average position assigned to a competitor that was
// mentioned but never appeared in a ranked list.
const UnrankedPosition = 99.0

type CompetitorRecord struct {
	Domain       string    `json:"domain"`
	Name         string    `json:"name"`
	Rank         int       `json:"rank"`
	MentionCount int       `json:"mention_count"`
	AvgPosition  float64   `json:"avg_position"`
	Visibility   float64   `json:"visibility"`
	Trend        Trend     `json:"trend"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Plan is a subscription tier's resource envelope for one scan.
type Plan struct {
	Name            string   `json:"name" yaml:"name"`
	Concurrency     int      `json:"concurrency" yaml:"concurrency"`
	PerClusterLimit int      `json:"per_cluster_limit" yaml:"per_cluster_limit"`
	QueryLimit      int      `json:"query_limit" yaml:"query_limit"`
	Providers       []string `json:"providers" yaml:"providers"`
}

type ScanRequest struct {
	ScanID string     `json:"scan_id"`
	URL    string     `json:"url"`
	Form   *FormInput `json:"form,omitempty"`
	Plan   Plan       `json:"plan"`
}

type ScanResult struct {
	ScanID      string             `json:"scan_id"`
	Profile     Profile            `json:"profile"`
	Queries     []ValidatedQuery   `json:"queries"`
	Analyses    []ResponseAnalysis `json:"analyses"`
	Breakdown   ScoringBreakdown   `json:"breakdown"`
	Competitors []CompetitorRecord `json:"competitors"`
	Form        *FormInput         `json:"form,omitempty"`
	Duration    time.Duration      `json:"duration"`
}

// Scan is the persisted scan row as read back by the services.
type Scan struct {
	ID         string
	DomainRef  string
	Domain     string
	URL        string
	Status     string // queued|running|completed|failed
	Progress   float64
	Plan       string
	Form       *FormInput
	Score      *int
	Breakdown  *ScoringBreakdown
	Profile    *Profile
	QueryCount int
	Phase      string
	Error      string
	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
}

// StoredResponse is the persisted summary of one ResponseAnalysis.
type StoredResponse struct {
	ScanID          string
	Query           string
	Category        IntentCategory
	Provider        string
	BrandDetected   bool
	BrandPosition   *int
	BrandConfidence float64
	Method          DetectionMethod
	Competitors     []string
	Citations       []string
	BrandCited      bool
}
