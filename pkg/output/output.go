// Package output writes the correlation id back into the host's output
// parameters.
package output

// Params is the host output parameter collection.
type Params map[string]string

// Write stores value under field. With appendMode and a non-empty existing
// value the result is "existing value"; otherwise value replaces whatever
// was there.
func Write(params Params, field, value string, appendMode bool) {
	if params == nil {
		return
	}
	if existing := params[field]; appendMode && existing != "" {
		params[field] = existing + " " + value
		return
	}
	params[field] = value
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
