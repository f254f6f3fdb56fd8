package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/bcrant/mlrun/pkg/domain"
)

func TestParseReference(t *testing.T) {

	t.Run("it takes hash-shaped references as uid", func(t *testing.T) {
		for _, reference := range []string{
			"6d2caa30bf3c46f4aac0a20b9e1af7e4",
			strings.Repeat("0123456789abcdef", 4), // 64 chars
			strings.Repeat("a", 40),
		} {
			tag, uid, err := domain.ParseReference(reference)
			if err != nil {
				t.Fatalf("%s: %v", reference, err)
			}
			if uid != reference {
				t.Errorf("%s: uid should be the reference itself: %s", reference, uid)
			}
			if tag != "" {
				t.Errorf("%s: tag should be empty: %s", reference, tag)
			}
		}
	})

	t.Run("it takes everything else as tag", func(t *testing.T) {
		for _, reference := range []string{
			"latest",
			"prod",
			"v1.2.3",
			"6D2CAA30BF3C46F4AAC0A20B9E1AF7E4",     // uppercase: not a uid
			"6d2caa30bf3c46f4aac0a20b9e1af7e4xyz9", // non-hex chars
			strings.Repeat("a", 31),                // too short for a uid
			strings.Repeat("a", 65),                // too long for a uid
		} {
			tag, uid, err := domain.ParseReference(reference)
			if err != nil {
				t.Fatalf("%s: %v", reference, err)
			}
			if tag != reference {
				t.Errorf("%s: tag should be the reference itself: %s", reference, tag)
			}
			if uid != "" {
				t.Errorf("%s: uid should be empty: %s", reference, uid)
			}
		}
	})

	t.Run("exactly one of tag and uid is set, never both", func(t *testing.T) {
		for _, reference := range []string{
			"latest", strings.Repeat("f", 32), "some-tag", strings.Repeat("0", 64),
		} {
			tag, uid, err := domain.ParseReference(reference)
			if err != nil {
				t.Fatal(err)
			}
			if (tag == "") == (uid == "") {
				t.Errorf("%s: got tag=%q uid=%q", reference, tag, uid)
			}
		}
	})

	t.Run("empty references are rejected", func(t *testing.T) {
		if _, _, err := domain.ParseReference(""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("references with path separators are rejected", func(t *testing.T) {
		for _, reference := range []string{"a/b", "/latest", `tag\name`} {
			if _, _, err := domain.ParseReference(reference); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("%s: unexpected error: %v", reference, err)
			}
		}
	})
}
