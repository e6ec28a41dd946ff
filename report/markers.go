package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Agent responses embed JSON blocks between fixed tags. A missing tag is a
// hard failure: the assemblers have no fallback for malformed analyses.
const (
	EvaluationTag = "evaluation"
	FeedbackTag   = "feedback"
	OutputTag     = "output"
)

// ExtractTagged returns the JSON block between <tag> and </tag>.
func ExtractTagged(response, tag string) (json.RawMessage, error) {
	openTag := "<" + tag + ">"
	closeTag := "</" + tag + ">"

	start := strings.Index(response, openTag)
	if start < 0 {
		return nil, fmt.Errorf("response is missing %s marker", openTag)
	}
	rest := response[start+len(openTag):]

	end := strings.Index(rest, closeTag)
	if end < 0 {
		return nil, fmt.Errorf("response is missing %s marker", closeTag)
	}

	block := strings.TrimSpace(rest[:end])
	if !json.Valid([]byte(block)) {
		return nil, fmt.Errorf("block inside %s is not valid JSON", openTag)
	}
	return json.RawMessage(block), nil
}

// ParseAnalysis extracts the evaluation and feedback pair from one agent
// response.
func ParseAnalysis(response string) (Analysis, error) {
	evaluation, err := ExtractTagged(response, EvaluationTag)
	if err != nil {
		return Analysis{}, err
	}
	feedback, err := ExtractTagged(response, FeedbackTag)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Evaluation: evaluation, Feedback: feedback}, nil
}
