package featureflag

type Flag string

const (
	// Altitudes given relative to the mean sea level are used as
	// ellipsoidal heights.
	FlagDisableGeoidCorrection Flag = "DISABLE_GEOID_CORRECTION"

	// The /stream endpoint is not served.
	FlagDisableVolumeStream Flag = "DISABLE_VOLUME_STREAM"

	// Volume set requests where every item failed are rejected.
	FlagStrictVolumeSets Flag = "STRICT_VOLUME_SETS"
)
