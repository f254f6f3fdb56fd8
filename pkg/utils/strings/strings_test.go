package strings_test

import (
	"testing"

	kstrings "github.com/bcrant/mlrun/pkg/utils/strings"
)

func TestTrimPrefixAll(t *testing.T) {
	for name, testcase := range map[string]struct {
		s, prefix string
		want      string
	}{
		"when s has the prefix once, it is removed": {
			s: "/api", prefix: "/", want: "api",
		},
		"when s has the prefix repeatedly, all of them are removed": {
			s: "///api", prefix: "/", want: "api",
		},
		"when s does not have the prefix, s is returned unchanged": {
			s: "api", prefix: "/", want: "api",
		},
		"when prefix is longer than one rune, it is removed as a whole": {
			s: "aaabbbccc", prefix: "aaab", want: "bbccc",
		},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := kstrings.TrimPrefixAll(testcase.s, testcase.prefix); actual != testcase.want {
				t.Errorf("unexpected result: %s (expected: %s)", actual, testcase.want)
			}
		})
	}
}

func TestEnsureSuffix(t *testing.T) {
	for name, testcase := range map[string]struct {
		text, suffix string
		want         string
	}{
		"when text lacks the suffix, it is appended": {
			text: "/api", suffix: "/", want: "/api/",
		},
		"when text has the suffix, text is returned unchanged": {
			text: "/api/", suffix: "/", want: "/api/",
		},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := kstrings.EnsureSuffix(testcase.text, testcase.suffix); actual != testcase.want {
				t.Errorf("unexpected result: %s (expected: %s)", actual, testcase.want)
			}
		})
	}
}
