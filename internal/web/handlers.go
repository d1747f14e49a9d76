package web

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

type statusView struct {
	DatasetDir string            `json:"dataset_dir"`
	LastRun    *domain.RunRecord `json:"last_run"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.LastRun(r.Context())
	if err != nil {
		s.logger.Error("Failed to read run history", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, statusView{DatasetDir: s.datasetDir, LastRun: rec})
}

type assetView struct {
	CanonicalID string     `json:"canonical_id"`
	Symbol      string     `json:"symbol"`
	Name        string     `json:"name"`
	Rank        int        `json:"rank"`
	FileName    string     `json:"file_name"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	RetiredAt   *time.Time `json:"retired_at,omitempty"`
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.registry.ListAssets(r.Context())
	if err != nil {
		s.logger.Error("Failed to list assets", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	views := make([]assetView, 0, len(assets))
	for _, a := range assets {
		views = append(views, assetView{
			CanonicalID: a.Asset.CanonicalID,
			Symbol:      a.Asset.Symbol,
			Name:        a.Asset.Name,
			Rank:        a.Asset.Rank,
			FileName:    a.FileName,
			FirstSeen:   a.FirstSeen,
			LastSeen:    a.LastSeen,
			RetiredAt:   a.RetiredAt,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

// handleManifest serves the manifest exactly as the last run wrote it.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.datasetDir, "dataset-metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "no manifest yet", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to read manifest", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
