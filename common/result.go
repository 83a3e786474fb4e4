package common

import "fmt"

// OperationResult is the outcome of one report or cleaning step
type OperationResult struct {
	Applied bool
	Message string
	Count   int // Number of items involved (sections inspected, bytes removed, etc.)
	Details []OperationDetail
}

// NewSkipped creates a result for a step that had nothing to do
func NewSkipped(reason string) *OperationResult {
	return &OperationResult{
		Applied: false,
		Message: reason,
	}
}

// NewApplied creates a result for a step that ran
func NewApplied(message string, count int) *OperationResult {
	return &OperationResult{
		Applied: true,
		Message: message,
		Count:   count,
	}
}

// WithDetails attaches per-item details to the result
func (r *OperationResult) WithDetails(details ...OperationDetail) *OperationResult {
	r.Details = append(r.Details, details...)
	return r
}

// HasRisky reports whether any detail was flagged
func (r *OperationResult) HasRisky() bool {
	for _, d := range r.Details {
		if d.IsRisky {
			return true
		}
	}
	return false
}

func (r *OperationResult) String() string {
	if r.Applied {
		if r.Count > 0 {
			return fmt.Sprintf("APPLIED (%s, %d items)", r.Message, r.Count)
		}
		return fmt.Sprintf("APPLIED (%s)", r.Message)
	}
	return fmt.Sprintf("SKIPPED (%s)", r.Message)
}
