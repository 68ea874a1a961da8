package recommendation

// Verification is the audit record of the prior-tag verification pass.
type Verification struct {
	Skipped       bool              `json:"skipped"`
	Appropriate   []string          `json:"appropriate"`
	Inappropriate []string          `json:"inappropriate"`
	Reasons       map[string]string `json:"reasons"`
	Dropped       []string          `json:"dropped,omitempty"`
	ParseError    string            `json:"parse_error,omitempty"`
	RemoteError   string            `json:"remote_error,omitempty"`
}

// ContentAnalysis is the audit record of the content-analysis pass.
type ContentAnalysis struct {
	Recommended []string          `json:"recommended"`
	Reasons     map[string]string `json:"reasons"`
	Excluded    []string          `json:"excluded,omitempty"`
	Dropped     []string          `json:"dropped,omitempty"`
	ParseError  string            `json:"parse_error,omitempty"`
	RemoteError string            `json:"remote_error,omitempty"`
}

// HistoricalVote is a tag carried over from a similar approved record.
type HistoricalVote struct {
	Tag        string     `json:"tag"`
	Provenance Provenance `json:"provenance"`
}

// Historical is the audit record of the historical-vote pass.
type Historical struct {
	Neighbors int              `json:"neighbors"`
	Votes     []HistoricalVote `json:"votes"`
	Dropped   []string         `json:"dropped,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Analysis is the full layered result: the fused recommendation plus per-pass detail.
type Analysis struct {
	Result
	PriorTags       []string
	Verification    Verification
	ContentAnalysis ContentAnalysis
	Historical      Historical
	Similar         []Provenance
	Suppressed      []TagVote
}
