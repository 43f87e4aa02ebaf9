package model

// QAPair is a question with the answer the knowledge base returned for it.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionError records a question that could not be answered.
type QuestionError struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Err      error  `json:"-"`
}

// Message returns the error text, or "" when Err is nil.
func (e QuestionError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// RunResult is the outcome of one questionnaire run. Pairs keep extraction
// order; failed questions are listed in Failures and omitted from Pairs.
type RunResult struct {
	Questions  []Question      `json:"questions"`
	Pairs      []QAPair        `json:"pairs"`
	Failures   []QuestionError `json:"failures,omitempty"`
	OutputPath string          `json:"output_path,omitempty"`
}

// Answered returns the number of questions that produced an answer.
func (r *RunResult) Answered() int {
	return len(r.Pairs)
}
