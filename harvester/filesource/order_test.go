package filesource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSort(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		expected []string
	}{
		{
			"numeric tokens",
			[]string{"p_0_1000_x.xml", "p_0_200_x.xml", "p_0_30_x.xml"},
			[]string{"p_0_30_x.xml", "p_0_200_x.xml", "p_0_1000_x.xml"},
		},
		{
			"initial first",
			[]string{"p_0_2_x.xml", "initial_load.xml", "p_0_1_x.xml"},
			[]string{"initial_load.xml", "p_0_1_x.xml", "p_0_2_x.xml"},
		},
		{
			"lexical when any token is missing",
			[]string{"b.xml", "p_0_10_x.xml", "p_0_9_x.xml", "a.xml"},
			[]string{"a.xml", "b.xml", "p_0_10_x.xml", "p_0_9_x.xml"},
		},
		{
			"ties broken lexically",
			[]string{"q_0_5_x.xml", "p_0_5_x.xml"},
			[]string{"p_0_5_x.xml", "q_0_5_x.xml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Sort(tt.files)
			assert.Equal(t, tt.expected, tt.files)
		})
	}
}

func TestIsHarvestFile(t *testing.T) {
	assert.True(t, isHarvestFile("a.xml"))
	assert.True(t, isHarvestFile("a.XML"))
	assert.False(t, isHarvestFile("a.xml.gz"))
	assert.False(t, isHarvestFile("README"))
}
