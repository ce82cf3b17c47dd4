package models

// Scenario selects how the domain allow-list is obtained.
type Scenario string

const (
	// ScenarioBySources restricts the search to domains resolved from the
	// caller-selected source labels.
	ScenarioBySources Scenario = "by_sources"
	// ScenarioAutoSources asks the model to propose domains first.
	ScenarioAutoSources Scenario = "auto_sources"
)

// Turn is one prior message of the conversation, replayed to the model on
// every call so it avoids repeating documents.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchRequest carries one form submission.
type SearchRequest struct {
	Topic       string   `json:"topic"`
	Keywords    string   `json:"keywords"`
	PeriodFrom  string   `json:"periodFrom"`
	PeriodTo    string   `json:"periodTo"`
	Sources     []string `json:"sources"`
	Scenario    Scenario `json:"scenario"`
	History     []Turn   `json:"history"`
	DocTypes    []string `json:"docTypes"`
	Languages   []string `json:"languages"`
	NeedRu      *bool    `json:"needRu"`
	NeedMetrics *bool    `json:"needMetrics"`
	Model       string   `json:"model"`
	// Previous holds the table markdown already shown to the user; when set,
	// freshly found rows are merged into it instead of replacing it.
	Previous string `json:"previous"`
}

// RuNeeded reports the needRu flag with its default of true.
func (r SearchRequest) RuNeeded() bool {
	return r.NeedRu == nil || *r.NeedRu
}

// MetricsNeeded reports the needMetrics flag with its default of true.
func (r SearchRequest) MetricsNeeded() bool {
	return r.NeedMetrics == nil || *r.NeedMetrics
}

// SearchResult is what the pipeline hands back to the HTTP layer.
type SearchResult struct {
	Answer  string
	Notice  string
	Domains []string
	Model   string
}
