package scan

import "strings"

// Classifier buckets a response body by its indicator substrings.
type Classifier struct {
	success string
	failure string
}

// NewClassifier builds a Classifier from the success and failure
// indicator strings.
func NewClassifier(success, failure string) *Classifier {
	return &Classifier{
		success: success,
		failure: strings.ToLower(failure),
	}
}

// Classify applies the match rules in priority order. The success
// indicator is compared case-sensitively; the failure indicator is not.
// A body carrying neither indicator is only a potential find.
func (c *Classifier) Classify(body string) Outcome {
	if strings.Contains(body, c.success) {
		return OutcomeMatch
	}
	if !strings.Contains(strings.ToLower(body), c.failure) {
		return OutcomePotential
	}
	return OutcomeRejected
}
