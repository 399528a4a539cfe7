package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/sector"
	"github.com/segmentio/encoding/json"
)

// SectorSummary describes a running sector.
type SectorSummary struct {
	Name        string `json:"name"`
	SessionID   string `json:"session_id"`
	Tick        uint64 `json:"tick"`
	Nodes       int    `json:"nodes"`
	Connections int    `json:"connections"`
	Bodies      int    `json:"bodies"`
	Sources     int    `json:"sources"`
	Persistent  bool   `json:"persistent"`
}

// HandleSectors lists the sectors of the store sorted by name.
func HandleSectors(store *sector.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := store.List()
		summaries := make([]SectorSummary, 0, len(sessions))

		for _, session := range sessions {
			summary := SectorSummary{
				Name:       session.Name(),
				SessionID:  session.ID,
				Persistent: session.Persistent,
			}

			session.Do(func(s *sector.Sector) error {
				summary.Tick = s.Tick()
				summary.Nodes = s.Lattice().NodeCount()
				summary.Connections = s.Lattice().ConnectionCount()
				summary.Bodies = s.BodyCount()
				summary.Sources = s.Field().Len()
				return nil
			})
			summaries = append(summaries, summary)
		}

		writeJSON(w, http.StatusOK, summaries)
	}
}

// HandleSectorSnapshot writes the snapshot of the sector named by the "name"
// query parameter, encoded with the codec named by "codec" (json by
// default).
func HandleSectorSnapshot(store *sector.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		name := query.Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, errors.New("missing sector name").
				WithType(models.ErrTypeInvalidMessage))
			return
		}

		codec := query.Get("codec")
		if codec == "" {
			codec = sector.CodecJSON
		}
		if !sector.IsValidCodec(codec) {
			writeError(w, http.StatusBadRequest, errors.New("unknown codec").
				WithType(models.ErrTypeInvalidMessage).
				WithTag("codec", codec))
			return
		}

		session, ok := store.GetByName(name)
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("sector not found").
				WithType(models.ErrTypeSectorNotFound).
				WithTag("sector", name))
			return
		}

		data, err := session.Snapshot().Encode(codec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, errors.New("encoding snapshot failed").
				WithTag("sector", name).
				Wrap(err))
			return
		}

		if codec == sector.CodecMsgpack {
			w.Header().Set("Content-Type", "application/msgpack")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		logs.Warn(err)
	}

	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Type:  errors.Type(err),
	})
}
