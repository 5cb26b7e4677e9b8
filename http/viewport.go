package http

import (
	"math"
	"net/http"

	"github.com/aukilabs/spatialid/featureflag"
	"github.com/aukilabs/spatialid/geoid"
	"github.com/aukilabs/spatialid/geometry"
	"github.com/aukilabs/spatialid/tilemath"
	"github.com/aukilabs/spatialid/viewport"
)

const (
	AltitudeReferenceEllipsoid = "ellipsoid"
	AltitudeReferenceMSL       = "msl"
)

type viewportRequest struct {
	// Degrees.
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`

	Altitude          float64 `json:"altitude"`
	AltitudeReference string  `json:"altitudeReference"`

	ZoomMin *uint8 `json:"zoomMin"`
	ZoomMax *uint8 `json:"zoomMax"`

	Ellipsoid string `json:"ellipsoid"`
}

type viewportResponse struct {
	Figure   viewport.Figure `json:"figure"`
	Volume   geometry.Volume `json:"volume"`
	Tile     tilemath.Tile   `json:"tile"`
	FellBack bool            `json:"fellBack"`

	// The height above the ellipsoid the ID was computed with.
	Altitude float64 `json:"altitude"`
}

// HandleViewport identifies the voxel enclosing a camera viewport.
func (a *API) HandleViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if !a.decodeRequest(w, r, viewportSchema, &req) {
		return
	}

	zoomMin := uint8(viewport.DefaultZoomMin)
	if req.ZoomMin != nil {
		zoomMin = *req.ZoomMin
	}
	zoomMax := uint8(viewport.DefaultZoomMax)
	if req.ZoomMax != nil {
		zoomMax = *req.ZoomMax
	}

	e, err := a.Ellipsoids.Lookup(req.Ellipsoid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rect := viewport.RectangleFromDegrees(req.West, req.South, req.East, req.North)
	if err := rect.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	altitude := req.Altitude
	if req.AltitudeReference == AltitudeReferenceMSL && a.Geoid != nil {
		a.FeatureFlags.IfNotSet(featureflag.FlagDisableGeoidCorrection, func() {
			lon, lat := rect.Center()
			altitude, err = geoid.ToEllipsoidal(r.Context(), a.Geoid,
				lon*180/math.Pi,
				lat*180/math.Pi,
				req.Altitude,
			)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	id, res, err := viewport.Identify(rect, altitude, zoomMin, zoomMax)
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := geometry.Resolve(id, e)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, viewportResponse{
		Figure:   viewport.NewFigure(id, rect, altitude),
		Volume:   v,
		Tile:     res.Tile,
		FellBack: res.FellBack,
		Altitude: altitude,
	})
}
