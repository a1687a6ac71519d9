package listing

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	digitRun  = regexp.MustCompile(`[0-9]{4,}`)
	fixedTime = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
)

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"animal id with name", "AID 649991 - Hinau", "649991"},
		{"digits at start", "123456 Rex", "123456"},
		{"exactly four digits", "Lot 2024", "2024"},
		{"first run wins", "AID 1111 and 22222", "1111"},
		{"short run skipped for later long run", "No 12 ref 98765", "98765"},
		{"fallback text", "3x Puppies", "3xpuppies"},
		{"fallback keeps short digit runs", "Litter of 123", "litterof123"},
		{"fallback strips punctuation", "  Mr. Whiskers!! ", "mrwhiskers"},
		{"fallback drops non-ascii letters", "Café Kitten", "cafkitten"},
		{"non-ascii digits are not a run", "٦٤٩٩٩١ Hinau", "hinau"},
		{"punctuation only", "--- !!", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeKey(tt.raw))
		})
	}
}

func TestNormalizeKeyDeterministic(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"AID 649991 - Hinau", "3x Puppies", ""} {
		require.Equal(t, NormalizeKey(raw), NormalizeKey(raw))
	}
}

func TestCandidatePromote(t *testing.T) {
	t.Parallel()

	c := Candidate{RawID: "AID 649991 - Hinau", Status: "Ask to foster"}
	f := c.Promote("649991", "https://example.org/foster", fixedTime)
	require.Equal(t, "649991", f.Key)
	require.Equal(t, "https://example.org/foster", f.TargetURL)
	require.Equal(t, "AID 649991 - Hinau [Ask to foster]", f.Summary())
}

func FuzzNormalizeKey(f *testing.F) {
	for _, seed := range []string{"AID 649991 - Hinau", "3x Puppies", "", "12-34", "ÄÖÜ 12"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		got := NormalizeKey(raw)
		if run := digitRun.FindString(raw); run != "" {
			if got != run {
				t.Fatalf("NormalizeKey(%q) = %q, want digit run %q", raw, got, run)
			}
			return
		}
		for i := 0; i < len(got); i++ {
			c := got[i]
			if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') {
				t.Fatalf("NormalizeKey(%q) = %q contains %q", raw, got, c)
			}
		}
		// Stripping can glue short digit runs together ("12-34" -> "1234");
		// only keys without such a run are fixed points.
		if digitRun.MatchString(got) {
			return
		}
		if again := NormalizeKey(got); again != got {
			t.Fatalf("NormalizeKey not idempotent: %q -> %q -> %q", raw, got, again)
		}
	})
}
