package common

import (
	"fmt"
	"sort"
	"strings"
)

// OperationDetail is a single line of a report
type OperationDetail struct {
	Message string
	IsRisky bool
}

// Detailf builds a plain detail line
func Detailf(format string, args ...interface{}) OperationDetail {
	return OperationDetail{Message: fmt.Sprintf(format, args...)}
}

// Riskyf builds a flagged detail line
func Riskyf(format string, args ...interface{}) OperationDetail {
	return OperationDetail{Message: fmt.Sprintf(format, args...), IsRisky: true}
}

// FormatOperationResult renders a result with its details grouped by category
func FormatOperationResult(title string, result *OperationResult) string {
	if result == nil {
		return "No operations performed"
	}

	var out strings.Builder
	out.WriteString(title)
	out.WriteString(": ")
	out.WriteString(result.String())

	categories := CategorizeDetails(result.Details)
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, category := range names {
		var emoji string
		switch category {
		case "SECTIONS":
			emoji = "📦"
		case "HEADERS":
			emoji = "🧾"
		case "RESOURCES":
			emoji = "🗂️"
		default:
			emoji = "🛠️"
		}

		out.WriteString(fmt.Sprintf("\n%s %s:", emoji, category))
		for _, detail := range categories[category] {
			prefix := "\n   ✓ "
			if detail.IsRisky {
				prefix = "\n   ⚠️ "
			}
			out.WriteString(prefix + detail.Message)
		}
	}

	return out.String()
}

// CategorizeDetails groups details by the subject they mention
func CategorizeDetails(details []OperationDetail) map[string][]OperationDetail {
	categories := map[string][]OperationDetail{}

	for _, detail := range details {
		msg := strings.ToLower(detail.Message)
		var category string
		switch {
		case strings.Contains(msg, "section"):
			category = "SECTIONS"
		case strings.Contains(msg, "resource"):
			category = "RESOURCES"
		case strings.Contains(msg, "header") || strings.Contains(msg, "alignment"):
			category = "HEADERS"
		default:
			category = "OTHER"
		}
		categories[category] = append(categories[category], detail)
	}

	return categories
}
