package chi

import (
	"github.com/kailas-cloud/tagrec/internal/domain/recommendation"
	indexinguc "github.com/kailas-cloud/tagrec/internal/usecase/indexing"
)

// ErrorCode is the machine-readable error kind in an error response.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeMissingInput           ErrorCode = "missing_input"
	ErrorCodeInvalidArgument        ErrorCode = "invalid_argument"
	ErrorCodeNotFound               ErrorCode = "not_found"
	ErrorCodeIndexStale             ErrorCode = "index_stale"
	ErrorCodeNoTaggedRecords        ErrorCode = "no_tagged_records"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeIndexUnavailable       ErrorCode = "index_unavailable"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// RecommendRequest is the body of the recommendation endpoints.
type RecommendRequest struct {
	ConversationID *int64   `json:"conversation_id,omitempty"`
	Text           *string  `json:"text,omitempty"`
	TopK           *int     `json:"top_k,omitempty"`
	MinSimilarity  *float64 `json:"min_similarity,omitempty"`
}

func (r *RecommendRequest) recordID() int64 {
	if r.ConversationID == nil {
		return 0
	}
	return *r.ConversationID
}

func (r *RecommendRequest) text() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}

// RecommendResponse is the similarity-only recommendation.
type RecommendResponse struct {
	Success              bool                              `json:"success"`
	Recommendations      []string                          `json:"recommendations"`
	TagScores            map[string]int                    `json:"tag_scores"`
	TagDetails           map[string]recommendation.TagVote `json:"tag_details"`
	SimilarConversations []recommendation.Excerpt          `json:"similar_conversations"`
	Confidence           float64                           `json:"confidence"`
	Message              string                            `json:"message"`
}

// AnalyzeResponse is the layered analysis with per-pass detail.
type AnalyzeResponse struct {
	Success              bool                              `json:"success"`
	Recommendations      []string                          `json:"recommendations"`
	TagDetails           map[string]recommendation.TagVote `json:"tag_details"`
	AutoSelectTags       []string                          `json:"auto_select_tags"`
	Confidence           float64                           `json:"confidence"`
	Message              string                            `json:"message"`
	SimilarConversations []recommendation.Provenance       `json:"similar_conversations"`
	InitialAITags        []string                          `json:"initial_ai_tags"`
	InitialAIAnalysis    recommendation.Verification       `json:"initial_ai_analysis"`
	ConversationAnalysis recommendation.ContentAnalysis    `json:"conversation_analysis"`
	HistoricalAnalysis   recommendation.Historical         `json:"historical_analysis"`
	Suppressed           []recommendation.TagVote          `json:"suppressed,omitempty"`
}

// BuildResponse reports a full index rebuild.
type BuildResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// StatsResponse wraps index statistics.
type StatsResponse struct {
	Success bool      `json:"success"`
	Data    StatsData `json:"data"`
}

// StatsData describes the index and the record store.
type StatsData struct {
	TotalDocuments     int           `json:"total_documents"`
	EmbeddingDimension int           `json:"embedding_dimension"`
	CollectionName     string        `json:"collection_name"`
	Backend            string        `json:"backend"`
	Model              string        `json:"model"`
	Stale              bool          `json:"stale"`
	Database           DatabaseStats `json:"database"`
}

// DatabaseStats holds record-store counts.
type DatabaseStats struct {
	TotalConversations    int `json:"total_conversations"`
	ApprovedConversations int `json:"approved_conversations"`
}

// IndexRecordResponse reports a single-record index update.
type IndexRecordResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"conversation_id"`
	Indexed bool  `json:"indexed"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func recommendToResponse(res *recommendation.Result) RecommendResponse {
	scores := make(map[string]int, len(res.TagFrequency))
	for _, tc := range res.TagFrequency {
		scores[tc.Tag] = tc.Count
	}
	excerpts := res.Excerpts
	if excerpts == nil {
		excerpts = []recommendation.Excerpt{}
	}
	return RecommendResponse{
		Success:              true,
		Recommendations:      nonNil(res.Tags),
		TagScores:            scores,
		TagDetails:           res.Details,
		SimilarConversations: excerpts,
		Confidence:           res.Confidence,
		Message:              res.Summary,
	}
}

func analysisToResponse(a *recommendation.Analysis) AnalyzeResponse {
	return AnalyzeResponse{
		Success:              true,
		Recommendations:      nonNil(a.Tags),
		TagDetails:           a.Details,
		AutoSelectTags:       nonNil(a.AutoSelect),
		Confidence:           a.Confidence,
		Message:              a.Summary,
		SimilarConversations: a.Similar,
		InitialAITags:        nonNil(a.PriorTags),
		InitialAIAnalysis:    a.Verification,
		ConversationAnalysis: a.ContentAnalysis,
		HistoricalAnalysis:   a.Historical,
		Suppressed:           a.Suppressed,
	}
}

func statsToResponse(st indexinguc.Stats) StatsResponse {
	return StatsResponse{
		Success: true,
		Data: StatsData{
			TotalDocuments:     st.Entries,
			EmbeddingDimension: st.Dimensions,
			CollectionName:     st.Collection,
			Backend:            st.Backend,
			Model:              st.Model,
			Stale:              st.Stale,
			Database: DatabaseStats{
				TotalConversations:    st.TotalRecords,
				ApprovedConversations: st.ApprovedRecords,
			},
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
