package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatOperationResult(t *testing.T) {
	res := NewApplied("header report", 2).WithDetails(
		Detailf("section .text aligned"),
		Riskyf("section .data raw offset 0x401 not aligned"),
		Detailf("file alignment 0x200"),
		Detailf("raw data total 4096 bytes"),
	)

	out := FormatOperationResult("Headers", res)
	assert.True(t, strings.HasPrefix(out, "Headers: APPLIED (header report, 2 items)"))
	assert.Contains(t, out, "📦 SECTIONS:")
	assert.Contains(t, out, "🧾 HEADERS:")
	assert.Contains(t, out, "   ⚠️ section .data raw offset 0x401 not aligned")
	assert.Contains(t, out, "   ✓ raw data total 4096 bytes")
	assert.True(t, res.HasRisky())
}

func TestFormatSkipped(t *testing.T) {
	out := FormatOperationResult("Resources", NewSkipped("no resource directory"))
	assert.Equal(t, "Resources: SKIPPED (no resource directory)", out)
	assert.Equal(t, "No operations performed", FormatOperationResult("x", nil))
}
