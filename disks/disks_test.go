package disks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetTableLoads(t *testing.T) {
	assert.NotEmpty(t, PresetSlugs())
}

func TestGetImagePreset(t *testing.T) {
	preset, err := GetImagePreset("1mib")
	require.NoError(t, err)
	assert.EqualValues(t, 1048576, preset.SizeBytes)
	assert.EqualValues(t, 64, preset.SuggestedInodes)

	_, err = GetImagePreset("no-such-size")
	assert.Error(t, err)
}

func TestPresetSizesAreBlockMultiples(t *testing.T) {
	for _, slug := range PresetSlugs() {
		preset, err := GetImagePreset(slug)
		require.NoError(t, err)
		assert.Zerof(t, preset.SizeBytes%4096,
			"preset %q is not a multiple of the block size", slug)
		assert.NotZerof(t, preset.SuggestedInodes,
			"preset %q suggests no inodes", slug)
	}
}
