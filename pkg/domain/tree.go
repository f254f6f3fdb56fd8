package domain

// Tree is a neutral JSON-shaped value: maps, slices and scalars.
//
// Resource specs and statuses are schemaless from this service's point of
// view, so they are carried and stored as Trees.
type Tree map[string]any

// PatchMode selects how MergePatch combines an update into a stored object.
type PatchMode string

const (
	// overlapping keys of the update overwrite the stored value wholesale,
	// nested maps included.
	PatchModeReplace PatchMode = "replace"

	// nested maps are merged recursively instead of being replaced as whole
	// subtrees.
	PatchModeAdditive PatchMode = "additive"
)

// ParsePatchMode maps a patch-mode header value to a PatchMode.
//
// Empty input defaults to PatchModeReplace. Unknown values are rejected with
// ErrInvalidArgument.
func ParsePatchMode(s string) (PatchMode, error) {
	switch PatchMode(s) {
	case "":
		return PatchModeReplace, nil
	case PatchModeReplace:
		return PatchModeReplace, nil
	case PatchModeAdditive:
		return PatchModeAdditive, nil
	}
	return "", NewInvalidArgument("patch mode should be replace or additive: " + s)
}

// MergePatch merges update into base and returns the result.
//
// Neither argument is modified. In replace mode each top-level key of update
// overwrites the corresponding key of base. In additive mode keys whose values
// are maps on both sides are merged recursively, at all depths.
func MergePatch(base Tree, update Tree, mode PatchMode) Tree {
	merged := make(Tree, len(base)+len(update))
	for k, v := range base {
		merged[k] = v
	}

	for k, v := range update {
		if mode == PatchModeAdditive {
			if baseMap, ok := asTree(merged[k]); ok {
				if updateMap, ok := asTree(v); ok {
					merged[k] = MergePatch(baseMap, updateMap, mode)
					continue
				}
			}
		}
		merged[k] = v
	}

	return merged
}

func asTree(v any) (Tree, bool) {
	switch t := v.(type) {
	case Tree:
		return t, true
	case map[string]any:
		return Tree(t), true
	}
	return nil, false
}
