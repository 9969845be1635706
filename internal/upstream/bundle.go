// Package upstream defines the raw payload shape shared by every source
// fetcher. Upstream APIs return arbitrary nested JSON with inconsistent
// field presence, so the bundle stays loosely typed: normalization, not
// fetching, is where values are coerced into the internal schema.
package upstream

// Entry is one loosely-typed record from a provider payload. Values may be
// strings, numbers, or absent; normalizers access them through defensive
// coercion helpers, never direct type assertions.
type Entry map[string]any

// Bundle is the raw payload a fetcher returns before normalization. A nil
// *Bundle means "source unavailable for this request".
type Bundle struct {
	IssuedAt     any     `json:"issued_at,omitempty" yaml:"issued_at"`
	Daily        []Entry `json:"daily,omitempty" yaml:"daily"`
	Hourly       []Entry `json:"hourly,omitempty" yaml:"hourly"`
	Warnings     []Entry `json:"warnings,omitempty" yaml:"warnings"`
	Observations []Entry `json:"observations,omitempty" yaml:"observations"`
	Bulletins    []Entry `json:"bulletins,omitempty" yaml:"bulletins"`
	Provenance   string  `json:"provenance,omitempty" yaml:"provenance"`
}

// IsEmpty reports whether the bundle carries no data at all.
func (b *Bundle) IsEmpty() bool {
	if b == nil {
		return true
	}
	return len(b.Daily) == 0 && len(b.Hourly) == 0 && len(b.Warnings) == 0 &&
		len(b.Observations) == 0 && len(b.Bulletins) == 0
}
