package revisionable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mickamy/revisionable"
)

func TestPolicy_Revisionable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		keep     []string
		dontKeep []string
		key      string
		want     bool
	}{
		{name: "unrestricted", key: "title", want: true},
		{name: "excluded", dontKeep: []string{"title"}, key: "title", want: false},
		{name: "exclude wins over include", keep: []string{"title"}, dontKeep: []string{"title"}, key: "title", want: false},
		{name: "included", keep: []string{"title"}, key: "title", want: true},
		{name: "not in include list", keep: []string{"title"}, key: "body", want: false},
		{name: "exclude other key", dontKeep: []string{"body"}, key: "title", want: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := revisionable.NewPolicy(tc.keep, tc.dontKeep)
			assert.Equal(t, tc.want, p.Revisionable(tc.key))
		})
	}
}

func TestPolicy_ZeroValue(t *testing.T) {
	t.Parallel()

	var p revisionable.Policy
	assert.True(t, p.Revisionable("anything"))

	p.Exclude("secret")
	p.Include("title")
	assert.False(t, p.Revisionable("secret"))
	assert.True(t, p.Revisionable("title"))
	assert.False(t, p.Revisionable("body"))
}
