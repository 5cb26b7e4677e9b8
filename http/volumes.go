package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/spatialid/featureflag"
	"github.com/aukilabs/spatialid/geometry"
	"github.com/aukilabs/spatialid/spatialid"
	"github.com/aukilabs/spatialid/volumeset"
	"github.com/segmentio/encoding/json"
)

// HandleVolume resolves the volume of the ID given in the path, on the
// ellipsoid given by the ellipsoid query parameter.
func (a *API) HandleVolume(w http.ResponseWriter, r *http.Request) {
	id, err := spatialid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := a.Ellipsoids.Lookup(r.URL.Query().Get("ellipsoid"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := geometry.Resolve(id, e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

type volumeSetRequest struct {
	Ellipsoid   string          `json:"ellipsoid"`
	Concurrency int             `json:"concurrency"`
	Items       []volumeSetItem `json:"items"`
}

type volumeSetItem struct {
	ID       string          `json:"id"`
	Metadata json.RawMessage `json:"metadata"`
}

type itemError struct {
	Key     string `json:"key"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type volumeSetResponse struct {
	Volumes   []volumeset.Volume[json.RawMessage] `json:"volumes"`
	Attempted int                                 `json:"attempted"`
	Failed    int                                 `json:"failed"`
	Errors    []itemError                         `json:"errors"`
}

// HandleVolumeSet resolves a batch of IDs with their metadata. Items that
// can't be resolved are listed in the response errors.
func (a *API) HandleVolumeSet(w http.ResponseWriter, r *http.Request) {
	var req volumeSetRequest
	if !a.decodeRequest(w, r, volumeSetSchema, &req) {
		return
	}

	if len(req.Items) > a.maxItems() {
		writeError(w, r, errors.New("too many volume set items").
			WithType(ErrTypeTooManyItems).
			WithTag("count", len(req.Items)).
			WithTag("limit", a.maxItems()))
		return
	}

	e, err := a.Ellipsoids.Lookup(req.Ellipsoid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resolver, err := geometry.NewResolver(e)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]volumeset.Item[json.RawMessage], len(req.Items))
	for i, item := range req.Items {
		items[i] = volumeset.Item[json.RawMessage]{
			Key:      item.ID,
			Metadata: item.Metadata,
		}
	}

	var sink volumeset.CollectSink
	set, err := volumeset.Build(r.Context(), items, resolver,
		volumeset.WithConcurrency(a.concurrency(req.Concurrency)),
		volumeset.WithErrorSink(&sink),
		volumeset.WithCleanAbort(),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res := volumeSetResponse{
		Volumes:   make([]volumeset.Volume[json.RawMessage], 0, set.Len()),
		Attempted: set.Attempted(),
		Failed:    set.Failed(),
		Errors:    make([]itemError, 0, sink.Len()),
	}
	for v := range set.All() {
		res.Volumes = append(res.Volumes, v)
	}
	for _, ie := range sink.Errors() {
		res.Errors = append(res.Errors, itemError{
			Key:     ie.Key,
			Type:    errors.Type(ie.Err),
			Message: ie.Err.Error(),
		})
	}

	status := http.StatusOK
	a.FeatureFlags.IfSet(featureflag.FlagStrictVolumeSets, func() {
		if res.Attempted > 0 && res.Failed == res.Attempted {
			status = http.StatusUnprocessableEntity
		}
	})

	logs.WithTag(logs.ClientIDTag, ClientID(r.Context())).
		WithTag("ellipsoid", req.Ellipsoid).
		WithTag("attempted", res.Attempted).
		WithTag("failed", res.Failed).
		Debug("volume set resolved")

	writeJSON(w, r, status, res)
}
