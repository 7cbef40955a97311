package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	opt, err := ParseOptions("tab", "comma", "space")
	require.NoError(t, err)
	assert.Equal(t, '\t', opt.Delimiter)
	assert.Equal(t, ',', opt.DecimalSeparator)
	assert.Equal(t, ' ', opt.ThousandsSeparator)
	assert.Equal(t, 1, opt.SheetIndex)

	opt, err = ParseOptions("", "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opt)

	tests := []struct {
		name                  string
		delim, dec, thousands string
	}{
		{"bad delimiter", "#", "", ""},
		{"bad decimal", "", "x", ""},
		{"bad thousands", "", "", "_"},
		{"same separators", "", ",", ","},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions(tt.delim, tt.dec, tt.thousands)
			assert.Error(t, err)
		})
	}
}
