package http

import (
	"io"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/spatialid/ellipsoid"
	"github.com/aukilabs/spatialid/featureflag"
	"github.com/aukilabs/spatialid/geoid"
	"github.com/aukilabs/spatialid/spatialid"
	"github.com/aukilabs/spatialid/viewport"
	"github.com/aukilabs/spatialid/volumeset"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/segmentio/encoding/json"
)

const (
	// ErrTypeInvalidRequest is the error type returned for request bodies
	// that don't match their schema.
	ErrTypeInvalidRequest = "invalid_request"

	// ErrTypeTooManyItems is the error type returned for volume set requests
	// with more items than allowed.
	ErrTypeTooManyItems = "too_many_items"

	DefaultMaxItems    = 10000
	DefaultMaxBodySize = 8 << 20

	volumesPrefix = "/volumes/"
)

// API serves the spatial ID operations over HTTP.
type API struct {
	// The ellipsoids that can be selected by name.
	Ellipsoids ellipsoid.Presets

	// The source of geoid heights used to convert mean sea level altitudes.
	// Altitudes are used as is when nil.
	Geoid geoid.Source

	FeatureFlags featureflag.FeatureFlag

	// The maximum number of items resolved at the same time per volume set
	// request.
	Concurrency int

	// The maximum number of items of a volume set request.
	MaxItems int

	// The maximum size of request bodies, in bytes.
	MaxBodySize int64
}

// Register adds the API routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+volumesPrefix+"{id...}", a.HandleVolume)
	mux.HandleFunc("POST /volume-sets", a.HandleVolumeSet)
	mux.HandleFunc("POST /viewport", a.HandleViewport)
	mux.HandleFunc("GET /ellipsoids", a.HandleEllipsoids)
}

// HandleEllipsoids lists the ellipsoid presets.
func (a *API) HandleEllipsoids(w http.ResponseWriter, r *http.Request) {
	type preset struct {
		Name string `json:"name"`
		ellipsoid.Ellipsoid
	}

	presets := make([]preset, 0, len(a.Ellipsoids))
	for _, name := range a.Ellipsoids.Names() {
		presets = append(presets, preset{
			Name:      name,
			Ellipsoid: a.Ellipsoids[name],
		})
	}
	writeJSON(w, r, http.StatusOK, presets)
}

func (a *API) maxItems() int {
	if a.MaxItems <= 0 {
		return DefaultMaxItems
	}
	return a.MaxItems
}

func (a *API) concurrency(requested int) int {
	c := a.Concurrency
	if c <= 0 {
		c = volumeset.DefaultConcurrency
	}
	if requested > 0 {
		c = min(c, requested)
	}
	return c
}

// decodeRequest reads a JSON body, checks it against schema and decodes it
// into v. It writes the error response and returns false on failure.
func (a *API) decodeRequest(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, v any) bool {
	maxBodySize := a.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			writeError(w, r, errors.New("request body too large").
				WithType(ErrTypeInvalidRequest).
				WithTag("limit", maxBytesErr.Limit))
			return false
		}

		httpcmn.InternalServerError(w, errors.New("reading body failed").Wrap(err))
		return false
	}

	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		logs.WithTag(logs.ClientIDTag, ClientID(r.Context())).Debug(errors.New("decoding body failed").Wrap(err))
		httpcmn.BadRequest(w, httpcmn.ErrBadRequest)
		return false
	}

	if err := schema.Validate(doc); err != nil {
		writeError(w, r, errors.New("request does not match schema").
			WithType(ErrTypeInvalidRequest).
			Wrap(err))
		return false
	}

	if err := json.Unmarshal(b, v); err != nil {
		writeError(w, r, errors.New("decoding request failed").
			WithType(ErrTypeInvalidRequest).
			Wrap(err))
		return false
	}
	return true
}

type errorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func statusOf(err error) int {
	switch errors.Type(err) {
	case ErrTypeInvalidRequest,
		ErrTypeTooManyItems,
		spatialid.ErrTypeMalformedString,
		spatialid.ErrTypeIndexOutOfRange,
		ellipsoid.ErrTypeUnknownEllipsoid,
		ellipsoid.ErrTypeInvalidEllipsoid,
		viewport.ErrTypeInvalidZoomRange,
		viewport.ErrTypeInvalidRectangle:
		return http.StatusBadRequest

	case geoid.ErrTypeOutsideGrid:
		return http.StatusUnprocessableEntity

	case volumeset.ErrTypeBatchCanceled:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)

	entry := logs.WithTag(logs.ClientIDTag, ClientID(r.Context())).
		WithTag("path", r.URL.Path).
		WithTag("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(err)
	} else {
		entry.Debug(err)
	}

	typ := errors.Type(err)
	if typ == "" {
		typ = "internal"
	}
	writeJSON(w, r, status, errorResponse{
		Type:    typ,
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.WithTag(logs.ClientIDTag, ClientID(r.Context())).Error(errors.New("encoding response failed").Wrap(err))
		httpcmn.InternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
