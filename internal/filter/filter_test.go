package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLockRequired(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		include []string
		exclude []string
		want    bool
	}{
		{"no lists", "foo", nil, nil, true},
		{"empty lists", "foo", []string{}, []string{}, true},
		{"excluded case-insensitive", "Foo", nil, []string{"foo"}, false},
		{"excluded upper list", "foo", nil, []string{"FOO"}, false},
		{"not excluded", "bar", nil, []string{"foo"}, true},
		{"include wins over exclude", "bar", []string{"bar"}, []string{"bar"}, true},
		{"included", "BAR", []string{"bar"}, nil, true},
		{"not included but not excluded", "baz", []string{"bar"}, nil, true},
		{"not included and excluded", "baz", []string{"bar"}, []string{"baz"}, false},
		{"included mixed case both lists", "Report", []string{"REPORT"}, []string{"report"}, true},
		{"surrounding spaces ignored", "foo", nil, []string{" foo "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLockRequired(tt.action, tt.include, tt.exclude))
		})
	}
}

// Exhaustive check of the rule over every membership combination
func TestIsLockRequired_Formula(t *testing.T) {
	for _, inInclude := range []bool{false, true} {
		for _, inExclude := range []bool{false, true} {
			include := []string{"other"}
			exclude := []string{"other"}
			if inInclude {
				include = append(include, "ACTION")
			}
			if inExclude {
				exclude = append(exclude, "Action")
			}
			want := !inExclude || inInclude
			assert.Equal(t, want, IsLockRequired("action", include, exclude),
				"include=%t exclude=%t", inInclude, inExclude)
		}
	}
}

func TestPolicy_ZeroValueLocksEverything(t *testing.T) {
	var p Policy
	assert.True(t, p.Requires("anything"))
}

func TestNewPolicy_DoesNotKeepCallerSlices(t *testing.T) {
	exclude := []string{"foo"}
	p := NewPolicy(nil, exclude)
	exclude[0] = "bar"

	assert.False(t, p.Requires("foo"))
	assert.True(t, p.Requires("bar"))
}
