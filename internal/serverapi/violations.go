package serverapi

import (
	"net/http"
	"strconv"

	"github.com/sua-org/gidence-scm/internal/evidence"
	"github.com/sua-org/gidence-scm/internal/store"
)

// violationsResponse is a thin read-only projection over the evidence
// store (SPEC_FULL.md §10 item 3): original_source/server/src/routes/
// violation.rs carries a whole resolve-workflow Violation model with no
// spec.md analogue; this surfaces only the aggregate counts a uniform
// bundle's gap list is meant to report, without adding new write paths.
type violationsResponse struct {
	Total  int                        `json:"total"`
	Counts map[evidence.Violation]int `json:"counts"`
}

func (s *Server) handleListViolations(w http.ResponseWriter, r *http.Request) {
	q := store.Query{
		ClusterID:   r.URL.Query().Get("cluster_id"),
		ProcessorID: r.URL.Query().Get("processor_id"),
		CameraID:    r.URL.Query().Get("camera_id"),
		DateMin:     parseInt64(r.URL.Query().Get("date_minimum")),
		DateMax:     parseInt64(r.URL.Query().Get("date_maximum")),
	}

	records, err := s.Store.Evidence.Find(r.Context(), q)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	resp := violationsResponse{Counts: map[evidence.Violation]int{}}
	for _, rec := range records {
		for _, p := range rec.Person {
			for _, v := range p.Violation {
				resp.Counts[v]++
				resp.Total++
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
