package header

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "CT", n: 255, want: "CT"},
		{name: "ascii", in: strings.Repeat("a", 300), n: 255, want: strings.Repeat("a", 255)},
		{name: "split two-byte rune", in: strings.Repeat("a", 254) + "é", n: 255, want: strings.Repeat("a", 254)},
		{name: "split three-byte rune", in: "ab" + "中文", n: 4, want: "ab"},
		{name: "exact rune end", in: "ab中文", n: 5, want: "ab中"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), tt.n)
		})
	}
}

func TestFlattenedSequenceIsValidUTF8(t *testing.T) {
	long := strings.Repeat("Ünïcödé ", 40)
	got := truncate(long, maxFlattenedLength)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxFlattenedLength)
	assert.True(t, strings.HasPrefix(long, got))
}
