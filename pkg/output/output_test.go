package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrite(t *testing.T) {
	tests := []struct {
		name     string
		existing *string
		value    string
		append   bool
		want     string
	}{
		{"append to existing", ptr("A"), "B", true, "A B"},
		{"overwrite existing", ptr("A"), "B", false, "B"},
		{"append to empty", ptr(""), "B", true, "B"},
		{"append to absent", nil, "B", true, "B"},
		{"overwrite absent", nil, "B", false, "B"},
		{"empty value overwrites", ptr("A"), "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := Params{"Other": "keep"}
			if tt.existing != nil {
				params["TraceParent"] = *tt.existing
			}

			Write(params, "TraceParent", tt.value, tt.append)

			assert.Equal(t, tt.want, params["TraceParent"])
			assert.Equal(t, "keep", params["Other"])
		})
	}
}

func TestWrite_NilParams(t *testing.T) {
	assert.NotPanics(t, func() { Write(nil, "TraceParent", "x", true) })
}

func TestParams_Clone(t *testing.T) {
	p := Params{"a": "1"}
	c := p.Clone()
	c["a"] = "2"
	assert.Equal(t, "1", p["a"])
	assert.Nil(t, Params(nil).Clone())
}

func ptr(s string) *string { return &s }
