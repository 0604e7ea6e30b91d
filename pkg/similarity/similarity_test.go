package similarity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const diamond = "Riley just hit diamond rank in ranked queue!"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello,   World! ", "hello world"},
		{"Don't STOP\tme\nnow", "dont stop me now"},
		{"gg ez :) #indiedev", "gg ez indiedev"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestScore(t *testing.T) {
	assert.Equal(t, 1.0, Score(diamond, diamond))
	assert.Equal(t, 1.0, Score(diamond, "  riley JUST hit diamond rank in ranked queue "))
	assert.Equal(t, 0.0, Score(diamond, "Exploring a new indie platformer tonight."))
	assert.Equal(t, 0.0, Score("", diamond))
	assert.Equal(t, 0.0, Score("!!!", "???"))
	assert.Equal(t, 1.0, Score("🎮🔥", "🎮🔥"))

	// only stop words differ
	assert.InDelta(t, 1.0, Score(diamond, "Riley just hit the diamond rank in the ranked queue"), 1e-9)

	// no content terms on either side falls back to token-set overlap
	assert.InDelta(t, 0.2, Score("where are we", "who are they"), 1e-9)

	s := Score("finally beat the last boss in hollow knight", "finally beat the first boss in hades")
	assert.Greater(t, s, 0.0)
	assert.Less(t, s, 0.8)
}

func TestFilter_Scenarios(t *testing.T) {
	f := NewFilter(0.8)
	window := []string{diamond}

	assert.True(t, f.IsDuplicate(diamond, window))
	assert.False(t, f.IsDuplicate("Exploring a new indie platformer tonight.", window))
	assert.False(t, f.IsDuplicate(diamond, nil))

	// posts without any words still match an identical copy
	for _, c := range []string{"🎮🔥", "...", "GG!!!", "❤️", "#1"} {
		assert.True(t, f.IsDuplicate(c, []string{c}), c)
		assert.True(t, f.IsDuplicate(c, []string{"  " + strings.ToUpper(c) + " "}), c)
	}
	assert.False(t, f.IsDuplicate("🎮🔥", []string{"..."}))
	assert.False(t, f.IsDuplicate("", []string{""}))
}

func TestFilter_Deterministic(t *testing.T) {
	f := NewFilter(0.5)
	window := []string{
		"cozy farming night, my turnips are thriving",
		"hades run number forty, still no sleep",
		"stardew valley at 2am is a lifestyle",
	}
	candidate := "stardew valley at 3am is also a lifestyle"

	first := f.MostSimilar(candidate, window)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, f.MostSimilar(candidate, window))
		assert.Equal(t, f.IsDuplicate(candidate, window), f.IsDuplicate(candidate, window))
	}
	assert.Equal(t, 2, first.Index)
	assert.Equal(t, window[2], first.Text)
}

func TestFilter_ThresholdIsInclusive(t *testing.T) {
	f := NewFilter(1.0)
	assert.True(t, f.IsDuplicate(diamond, []string{"riley just hit diamond rank in ranked queue"}))
}

func TestMostSimilar_EmptyWindow(t *testing.T) {
	m := NewFilter(0.8).MostSimilar(diamond, nil)
	assert.Equal(t, -1, m.Index)
	assert.Equal(t, 0.0, m.Score)
}
