package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openvigil/vigil/internal/catalog"
	"github.com/openvigil/vigil/internal/config"
	"github.com/openvigil/vigil/internal/metrics"
)

type cameraStatus struct {
	ID         int64  `json:"id"`
	ShortName  string `json:"shortName"`
	Recordings int    `json:"recordings"`
}

type recordingStatus struct {
	ID          int64 `json:"id"`
	Start90k    int64 `json:"start90k"`
	Duration90k int64 `json:"duration90k"`
	SampleCount int   `json:"sampleCount"`
}

// statusHandler serves the metrics endpoint and a small read-only camera
// status API backed by the catalog.
func statusHandler(m *metrics.Metrics, db *catalog.DB, cameras []config.Camera) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", m.Handler())

	r.Get("/api/cameras", func(w http.ResponseWriter, req *http.Request) {
		out := make([]cameraStatus, 0, len(cameras))
		for _, cam := range cameras {
			recs, err := db.RecordingsByCamera(cam.ID)
			if err != nil {
				slog.Error("listing recordings", "camera", cam.ShortName, "error", err)
				http.Error(w, "catalog error", http.StatusInternalServerError)
				return
			}
			out = append(out, cameraStatus{
				ID:         cam.ID,
				ShortName:  cam.ShortName,
				Recordings: len(recs),
			})
		}
		writeJSON(w, out)
	})

	r.Get("/api/cameras/{id}/recordings", func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			http.Error(w, "bad camera id", http.StatusBadRequest)
			return
		}
		recs, err := db.RecordingsByCamera(id)
		if err != nil {
			slog.Error("listing recordings", "camera_id", id, "error", err)
			http.Error(w, "catalog error", http.StatusInternalServerError)
			return
		}
		out := make([]recordingStatus, 0, len(recs))
		for _, rec := range recs {
			out = append(out, recordingStatus{
				ID:          rec.ID,
				Start90k:    int64(rec.Start),
				Duration90k: rec.Duration90k,
				SampleCount: rec.SampleCount,
			})
		}
		writeJSON(w, out)
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding status response", "error", err)
	}
}
