package domain

import "slices"

// Filter selects records from the store. Zero values match everything
// except removed records, which need IncludeRemoved.
type Filter struct {
	Kind           Kind
	Tag            string
	WithoutTag     string
	Statuses       []Status
	IncludeRemoved bool
}

func (f Filter) Match(p PostRecord) bool {
	if f.Kind != "" && p.Kind != f.Kind {
		return false
	}
	if p.IsRemoved() && !f.IncludeRemoved && !slices.Contains(f.Statuses, StatusRemoved) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, p.Status) {
		return false
	}
	if f.Tag != "" && !p.HasTag(f.Tag) {
		return false
	}
	if f.WithoutTag != "" && p.HasTag(f.WithoutTag) {
		return false
	}
	return true
}

// Apply keeps the records that match, preserving order.
func (f Filter) Apply(records []PostRecord) []PostRecord {
	out := make([]PostRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
