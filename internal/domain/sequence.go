package domain

// Step is one numbered, independently editable unit of a sequence.
// ID is the 1-based position of the step and is always dense within a sequence.
type Step struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
}

// Variable is a user-defined placeholder value, referenced as {{Key}} in step text.
type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
