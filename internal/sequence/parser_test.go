package sequence

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []domain.Step
	}{
		{
			name: "numbered steps",
			raw:  "Step 1: Research the audience\nStep 2: Draft the email",
			want: []domain.Step{{ID: 1, Content: "Research the audience"}, {ID: 2, Content: "Draft the email"}},
		},
		{
			name: "model numbering is discarded",
			raw:  "Step 3: a\n\nStep 7: b\nStep 7: c",
			want: []domain.Step{{ID: 1, Content: "a"}, {ID: 2, Content: "b"}, {ID: 3, Content: "c"}},
		},
		{
			name: "unmarked lines become steps when any marker exists",
			raw:  "Here is your plan:\nStep 1: a\nStep 2: b\nLet me know!",
			want: []domain.Step{
				{ID: 1, Content: "Here is your plan:"},
				{ID: 2, Content: "a"},
				{ID: 3, Content: "b"},
				{ID: 4, Content: "Let me know!"},
			},
		},
		{
			name: "bare marker keeps an empty step",
			raw:  "Step 1: a\nStep 2:\nStep 3: c",
			want: []domain.Step{{ID: 1, Content: "a"}, {ID: 2, Content: ""}, {ID: 3, Content: "c"}},
		},
		{
			name: "crlf and indentation",
			raw:  "  Step 1: a\r\n\tStep 2:b\r\n",
			want: []domain.Step{{ID: 1, Content: "a"}, {ID: 2, Content: "b"}},
		},
		{
			name: "no markers wraps the whole text",
			raw:  "  What is the goal?\n\nWho is the audience?  ",
			want: []domain.Step{{ID: 1, Content: "What is the goal?\n\nWho is the audience?"}},
		},
		{
			name: "lowercase marker is not a marker",
			raw:  "step 1: lower\nStep one: words",
			want: []domain.Step{{ID: 1, Content: "step 1: lower\nStep one: words"}},
		},
		{
			name: "blank input",
			raw:  " \n\t\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Parse(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	t.Parallel()

	raw := "Intro\nStep 9: one\nStep 2: two"
	assert.Equal(t, Parse(raw), Parse(raw))
}

func TestHasMarkers(t *testing.T) {
	t.Parallel()

	assert.True(t, HasMarkers("hello\nStep 4: x"))
	assert.False(t, HasMarkers("Step four: x"))
	assert.False(t, HasMarkers(""))
}

func TestSerialize(t *testing.T) {
	t.Parallel()

	steps := []domain.Step{{ID: 2, Content: "b"}, {ID: 1, Content: "a"}, {ID: 3, Content: ""}}
	assert.Equal(t, "Step 1: a\nStep 2: b\nStep 3:", Serialize(steps))
	assert.Equal(t, "", Serialize(nil))

	// Input order is left untouched.
	assert.Equal(t, 2, steps[0].ID)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		steps := randomSteps(rng, 1+rng.Intn(12))
		got := Parse(Serialize(steps))
		require.Empty(t, cmp.Diff(steps, got), "round trip failed for %v", steps)
	}
}

func TestFallbackWrapping(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		raw := "\n " + randomWords(rng, 1+rng.Intn(8)) + "\n" + randomWords(rng, 1+rng.Intn(4)) + " \n"
		got := Parse(raw)
		require.Len(t, got, 1)
		assert.Equal(t, 1, got[0].ID)
		assert.Equal(t, strings.TrimSpace(raw), got[0].Content)
	}
}

func randomSteps(rng *rand.Rand, n int) []domain.Step {
	steps := make([]domain.Step, n)
	for i := range steps {
		steps[i] = domain.Step{ID: i + 1, Content: randomWords(rng, 1+rng.Intn(6))}
	}
	return steps
}

func randomWords(rng *rand.Rand, n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz{}.,!?"
	words := make([]string, n)
	for i := range words {
		b := make([]byte, 1+rng.Intn(8))
		for j := range b {
			b[j] = letters[rng.Intn(len(letters))]
		}
		words[i] = string(b)
	}
	return strings.Join(words, " ")
}

func TestRoundTripSplitsMultiLineStep(t *testing.T) {
	t.Parallel()

	wrapped := Parse("Greet the candidate\nAsk about availability")
	require.Len(t, wrapped, 1)
	assert.Equal(t, "Greet the candidate\nAsk about availability", wrapped[0].Content)

	text := Serialize(wrapped)
	assert.Equal(t, "Step 1: Greet the candidate\nAsk about availability", text)

	want := []domain.Step{
		{ID: 1, Content: "Greet the candidate"},
		{ID: 2, Content: "Ask about availability"},
	}
	if diff := cmp.Diff(want, Parse(text)); diff != "" {
		t.Errorf("Parse(Serialize) mismatch (-want +got):\n%s", diff)
	}
}
