package dto

// GeminiAPIRequest is the generateContent request payload.
type GeminiAPIRequest struct {
	Contents []Content `json:"contents"`
}

// Content is one message in a Gemini conversation.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is one fragment of a content message.
type Part struct {
	Text string `json:"text"`
}

// GeminiAPIResponse is the generateContent response payload.
type GeminiAPIResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content Content `json:"content"`
}

// SymbolAnalysisResult is the structured verdict the model must return.
type SymbolAnalysisResult struct {
	Stance          string   `json:"stance"`
	ConfidenceScore float64  `json:"confidence_score"`
	Summary         string   `json:"summary"`
	KeyFactors      []string `json:"key_factors"`
}
