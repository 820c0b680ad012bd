// Package sequence converts between free-form assistant text and numbered steps.
//
// The canonical text form is one step per line, written as "Step <id>: <content>".
// Step numbers found in model output are only a parsing hint: ids are always
// re-derived from line position so a sequence stays dense (1..k) even when the
// model skips or repeats numbers.
package sequence

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
)

var markerPattern = regexp.MustCompile(`^Step \d+:`)

// Parse converts raw text into an ordered list of steps.
//
// When at least one non-blank line carries a "Step N:" marker, every non-blank
// line becomes a step with its marker stripped. Otherwise the whole trimmed text
// becomes a single step with id 1. Blank input yields no steps.
func Parse(raw string) []domain.Step {
	lines := nonBlankLines(raw)
	if len(lines) == 0 {
		return nil
	}

	if !anyMarker(lines) {
		return []domain.Step{{ID: 1, Content: strings.TrimSpace(raw)}}
	}

	steps := make([]domain.Step, 0, len(lines))
	for i, line := range lines {
		steps = append(steps, domain.Step{
			ID:      i + 1,
			Content: stripMarker(line),
		})
	}
	return steps
}

// HasMarkers reports whether any line of raw starts with a "Step N:" marker.
func HasMarkers(raw string) bool {
	return anyMarker(nonBlankLines(raw))
}

// Serialize renders steps in the canonical text form, ascending by id.
//
// Parse(Serialize(steps)) == steps holds only when every step's content is a
// single line. A multi-line step, such as the single step wrapped from
// marker-less text, serializes to several lines and parses back as several
// steps.
func Serialize(steps []domain.Step) string {
	ordered := sortedByID(steps)
	var b strings.Builder
	for i, step := range ordered {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(FormatStep(step))
	}
	return b.String()
}

// FormatStep renders a single step line.
func FormatStep(step domain.Step) string {
	prefix := "Step " + strconv.Itoa(step.ID) + ":"
	if step.Content == "" {
		return prefix
	}
	return prefix + " " + step.Content
}

func nonBlankLines(raw string) []string {
	split := strings.Split(raw, "\n")
	lines := make([]string, 0, len(split))
	for _, line := range split {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func anyMarker(lines []string) bool {
	for _, line := range lines {
		if markerPattern.MatchString(line) {
			return true
		}
	}
	return false
}

func stripMarker(line string) string {
	loc := markerPattern.FindStringIndex(line)
	if loc == nil {
		return line
	}
	return strings.TrimSpace(line[loc[1]:])
}

func sortedByID(steps []domain.Step) []domain.Step {
	ordered := slices.Clone(steps)
	slices.SortStableFunc(ordered, func(a, b domain.Step) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return ordered
}
