package lang

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"en-US", "en", true},
		{"en-GB", "en", true},
		{"EN", "en", true},
		{"pt-BR", "pt", true},
		{"jp", "ja", true},
		{"JP", "ja", true},
		{"angika", "anp", true},
		{"de", "de", true},
		{"", "", false},
		{"   ", "", false},
		{"!!not-a-tag!!", "", false},
	}

	for _, tc := range cases {
		got, ok := Normalize(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, tag := range []string{"en-US", "jp", "pt-BR", "de", "angika", "zh-Hant"} {
		once, ok := Normalize(tag)
		require.True(t, ok, "input %q", tag)

		twice, ok := Normalize(once)
		require.True(t, ok, "normalized %q", once)
		require.Equal(t, once, twice)
	}
}
