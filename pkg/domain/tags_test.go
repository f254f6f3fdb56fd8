package domain_test

import (
	"testing"

	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/utils/cmp"
)

func TestUniqueTags(t *testing.T) {
	tuples := []domain.TagTuple{
		{Uid: "u1", Name: "ticks", Tag: "latest"},
		{Uid: "u1", Name: "ticks", Tag: "prod"},
		{Uid: "u2", Name: "quotes", Tag: "latest"},
		{Uid: "u3", Name: "secret", Tag: "internal"},
	}

	t.Run("duplicate tags collapse", func(t *testing.T) {
		tags := domain.UniqueTags(tuples, func(string) bool { return true })
		if !cmp.SliceContentEq(tags, []string{"latest", "prod", "internal"}) {
			t.Errorf("unexpected tags: %v", tags)
		}
	})

	t.Run("disallowed names are dropped", func(t *testing.T) {
		tags := domain.UniqueTags(tuples, func(name string) bool { return name != "secret" })
		if !cmp.SliceContentEq(tags, []string{"latest", "prod"}) {
			t.Errorf("unexpected tags: %v", tags)
		}
	})

	t.Run("no tuples make no tags", func(t *testing.T) {
		tags := domain.UniqueTags(nil, func(string) bool { return true })
		if len(tags) != 0 {
			t.Errorf("unexpected tags: %v", tags)
		}
	})
}

func TestTagByName(t *testing.T) {
	tuples := []domain.TagTuple{
		{Uid: "u1", Name: "ticks", Tag: "prod"},
		{Uid: "u1", Name: "ticks", Tag: "latest"},
		{Uid: "u2", Name: "quotes", Tag: "latest"},
	}

	byName := domain.TagByName(tuples, func(name string) bool { return name != "quotes" })
	if !cmp.MapEq(byName, map[string]string{"ticks": "prod"}) {
		t.Errorf("unexpected mapping: %v", byName)
	}
}
