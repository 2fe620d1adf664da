package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadedNotice_GroupsThousands(t *testing.T) {
	cases := map[int]string{
		0:       "PDF loaded! (0 characters extracted)",
		999:     "PDF loaded! (999 characters extracted)",
		1000:    "PDF loaded! (1,000 characters extracted)",
		1234567: "PDF loaded! (1,234,567 characters extracted)",
	}
	for in, want := range cases {
		assert.Equal(t, want, LoadedNotice(in))
	}
}
