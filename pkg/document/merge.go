package document

// DeepMerge returns a new map holding target with source applied on top.
// Keys whose values are maps on both sides are merged recursively; any other
// source value, lists included, replaces the target value wholesale. Neither
// argument is modified and the result shares no nested maps with them.
func DeepMerge(target, source Map) Map {
	out := make(Map, len(target)+len(source))
	for k, v := range target {
		out[k] = v.Clone()
	}
	for k, sv := range source {
		if sm, ok := sv.AsMap(); ok {
			if tm, ok := out[k].AsMap(); ok {
				out[k] = Object(DeepMerge(tm, sm))
				continue
			}
		}
		out[k] = sv.Clone()
	}
	return out
}

// MergeShape combines two patches into the single patch that has the same
// effect as applying a and then b.
func MergeShape(a, b Map) Map { return DeepMerge(a, b) }

// PruneNulls returns a copy of m without Null values. A nested map left with
// no keys is dropped from its parent. Lists are kept as they are, empty or not.
func PruneNulls(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		switch v.Kind() {
		case KindNull:
			continue
		case KindMap:
			nested, _ := v.AsMap()
			cleaned := PruneNulls(nested)
			if cleaned.IsEmpty() {
				continue
			}
			out[k] = Object(cleaned)
		default:
			out[k] = v.Clone()
		}
	}
	return out
}

// Changes reports whether applying patch to doc would alter it.
func Changes(doc, patch Map) bool {
	return !MapsEqual(doc, DeepMerge(doc, patch))
}
