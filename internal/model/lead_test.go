package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLastName(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Jane Doe", "Doe"},
		{"Jane van der Berg", "Berg"},
		{"Doe", "Doe"},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Lead{Name: tc.name}.LastName(), "name %q", tc.name)
	}
}
