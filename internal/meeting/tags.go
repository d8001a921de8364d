package meeting

import "strings"

// AddTag appends tag to tags after trimming surrounding whitespace.
// Empty tags and exact (case-sensitive) duplicates are rejected; in that case
// the original slice is returned with added=false.
func AddTag(tags []string, tag string) (out []string, added bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" || HasTag(tags, tag) {
		return tags, false
	}
	out = make([]string, 0, len(tags)+1)
	out = append(out, tags...)
	return append(out, tag), true
}

// RemoveTag removes the first exact match of tag.
// Removing a tag that is not present is a no-op.
func RemoveTag(tags []string, tag string) (out []string, removed bool) {
	for i, t := range tags {
		if t == tag {
			out = make([]string, 0, len(tags)-1)
			out = append(out, tags[:i]...)
			return append(out, tags[i+1:]...), true
		}
	}
	return tags, false
}

// HasTag reports whether tags contains tag exactly.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizeTags trims each tag, drops empties and keeps the first occurrence
// of duplicates. Used for tag lists coming from outside (AI output, CLI flags)
// so the stored sequence stays unique. Never returns nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out, _ = AddTag(out, t)
	}
	return out
}
