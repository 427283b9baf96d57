// SPDX-License-Identifier: Apache-2.0

package evidence_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

func TestTruncate_WithinCapIsIdentity(t *testing.T) {
	text := "short evidence"
	got := evidence.Truncate(text, 100)
	assert.Equal(t, text, got.Text)
	assert.False(t, got.Truncated)
	assert.Equal(t, len(text), got.OriginalLength)

	exact := strings.Repeat("x", 100)
	assert.Equal(t, exact, evidence.Truncate(exact, 100).Text)
}

func TestTruncate_KeepsHeadAndTail(t *testing.T) {
	text := strings.Repeat("a", 2500) + strings.Repeat("b", 2500)
	got := evidence.Truncate(text, 1000)

	assert.True(t, got.Truncated)
	assert.Equal(t, 5000, got.OriginalLength)
	assert.LessOrEqual(t, evidence.Length(got.Text), 1000)
	assert.True(t, strings.HasPrefix(got.Text, strings.Repeat("a", 500)))
	assert.True(t, strings.HasSuffix(got.Text, strings.Repeat("b", 250)))
	assert.Contains(t, got.Text, "[TRUNCATED: 4250 chars removed from middle]")
}

func TestTruncate_NeverExceedsCap(t *testing.T) {
	text := strings.Repeat("evidence ", 1000)
	for _, capChars := range []int{1, 5, 20, 40, 60, 61, 99, 150, 1000, 8999} {
		got := evidence.Truncate(text, capChars)
		assert.LessOrEqual(t, evidence.Length(got.Text), capChars, "cap %d", capChars)
		assert.True(t, got.Truncated, "cap %d", capChars)
	}
}

func TestTruncate_SmallCapKeepsMarker(t *testing.T) {
	text := strings.Repeat("z", 10000)
	got := evidence.Truncate(text, 80)
	assert.LessOrEqual(t, evidence.Length(got.Text), 80)
	assert.Contains(t, got.Text, "chars removed from middle]")
}

func TestTruncate_ZeroCap(t *testing.T) {
	got := evidence.Truncate("anything", 0)
	assert.Empty(t, got.Text)
	assert.True(t, got.Truncated)
}

func TestTruncate_CountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("é", 50)
	got := evidence.Truncate(text, 50)
	assert.False(t, got.Truncated)
	assert.Equal(t, 50, got.OriginalLength)
}

func TestClip(t *testing.T) {
	out, cut := evidence.Clip(strings.Repeat("m", 900), 800, 700, "\n[CUT]")
	assert.True(t, cut)
	assert.Equal(t, strings.Repeat("m", 700)+"\n[CUT]", out)

	out, cut = evidence.Clip("short", 800, 700, "\n[CUT]")
	assert.False(t, cut)
	assert.Equal(t, "short", out)
}
