package entity

// ComplexityLevel buckets a query by how much answer it needs.
type ComplexityLevel string

const (
	ComplexitySimple  ComplexityLevel = "simple"
	ComplexityMedium  ComplexityLevel = "medium"
	ComplexityComplex ComplexityLevel = "complex"
)

// Complexity is the result of query complexity analysis.
type Complexity struct {
	Level ComplexityLevel `json:"level"`
	Score int             `json:"score"`
	// MinChars and MaxChars are the soft target band for the formatted answer.
	MinChars int `json:"min_chars"`
	MaxChars int `json:"max_chars"`
}

// Fact is one statement extracted from a passage.
type Fact struct {
	Statement string `json:"statement"`
	Source    string `json:"source"`
}

// FactSet is the handoff between the research and formatting stages.
type FactSet struct {
	Query   string   `json:"query"`
	Facts   []Fact   `json:"facts"`
	Sources []string `json:"sources"`
	// Covered is false when the documents do not answer the query.
	Covered bool `json:"covered"`
	// Degraded marks a fact set built without the model.
	Degraded bool `json:"degraded"`
}

// ResearchRequest asks the model to extract facts from passages.
type ResearchRequest struct {
	Query    string
	Passages []Passage
}

// ResearchResponse is the model's structured extraction.
type ResearchResponse struct {
	Covered bool   `json:"covered"`
	Facts   []Fact `json:"facts"`
}

// FormatRequest asks the model to render facts as a channel message.
type FormatRequest struct {
	Query      string
	Facts      []Fact
	MinChars   int
	MaxChars   int
	Channel    string
	ImageAdded bool
}

// ChatRequest asks the model for a short conversational reply.
type ChatRequest struct {
	Message  string
	MaxChars int
}

// PipelineRequest is the input of the response pipeline.
type PipelineRequest struct {
	Query        string
	Passages     *PassageSet
	ImageRequest bool
}

// GenerationResult is the pipeline output handed to the channel and the audit log.
type GenerationResult struct {
	Text       string     `json:"text"`
	Sources    []string   `json:"sources"`
	ImageURL   string     `json:"image_url,omitempty"`
	Grounded   bool       `json:"grounded"`
	Complexity Complexity `json:"complexity"`
}
