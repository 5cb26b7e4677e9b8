package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagStrictVolumeSets)})

	t.Run("run if enabled", func(t *testing.T) {
		var strict bool
		f.IfSet(FlagStrictVolumeSets, func() {
			strict = true
		})
		require.True(t, strict)

		var noStream bool
		f.IfSet(FlagDisableVolumeStream, func() {
			noStream = true
		})
		require.False(t, noStream)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var strict bool
		f.IfNotSet(FlagStrictVolumeSets, func() {
			strict = true
		})
		require.False(t, strict)

		var stream bool
		f.IfNotSet(FlagDisableVolumeStream, func() {
			stream = true
		})
		require.True(t, stream)
	})
}

func TestParse(t *testing.T) {
	f := Parse(" disable_geoid_correction,,STRICT_VOLUME_SETS ")
	require.Len(t, f, 2)
	require.True(t, f.IsSet(FlagDisableGeoidCorrection))
	require.True(t, f.IsSet(FlagStrictVolumeSets))
	require.False(t, f.IsSet(FlagDisableVolumeStream))

	require.Empty(t, Parse(""))
}
