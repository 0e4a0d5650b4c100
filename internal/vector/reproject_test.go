package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/feedwise/feedwise/internal/errors"
)

func TestReprojectPassthrough(t *testing.T) {
	v := make([]float32, 1536)
	v[0] = 0.5
	got, err := Reproject(v, 1536)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestReprojectPadsLegacyDimension(t *testing.T) {
	before := ReprojectionCount()

	v := make([]float32, 768)
	for i := range v {
		v[i] = float32(i) / 768
	}

	got, err := Reproject(v, 1536)
	require.NoError(t, err)
	require.Len(t, got, 1536)

	for i := 0; i < 768; i++ {
		assert.Equal(t, v[i], got[i])
	}
	for i := 768; i < 1536; i++ {
		assert.Zero(t, got[i])
	}

	assert.Equal(t, before+1, ReprojectionCount())
}

func TestReprojectRejectsArbitraryMismatch(t *testing.T) {
	tests := []struct {
		name   string
		from   int
		target int
	}{
		{"384 to 1536", 384, 1536},
		{"1536 to 768", 1536, 768},
		{"768 to 1024", 768, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reproject(make([]float32, tt.from), tt.target)
			require.Error(t, err)
			assert.Equal(t, ferrors.ErrCodeDimensionMismatch, ferrors.CodeOf(err))
		})
	}
}
