package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomz197/sshtargets/internal/leaderboard"
	"github.com/tomz197/sshtargets/internal/store"
)

const maxBodyBytes = 64 << 10

// IndexResponse lists the available endpoints.
type IndexResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

// HealthResponse reports liveness and the stored list size.
type HealthResponse struct {
	Status      string `json:"status"`
	ScoresCount int    `json:"scores_count"`
	Timestamp   string `json:"timestamp"`
}

// AddScoreRequest is the POST /api/highscores body. Score accepts a JSON
// number or a numeric string.
type AddScoreRequest struct {
	Name  *string         `json:"name"`
	Score json.RawMessage `json:"score"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, IndexResponse{
		Message: "Target game high-score API",
		Endpoints: map[string]string{
			"GET /api/highscores":    "Get all highscores",
			"POST /api/highscores":   "Add new highscore",
			"PUT /api/highscores":    "Replace the highscore list",
			"GET /api/highscores/ws": "Websocket stream of highscore updates",
			"GET /api/health":        "Check API health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	list, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.Warn("health check: store unavailable", "err", err)
		resp.Status = "unhealthy"
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.ScoresCount = len(list)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetScores(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Load(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to load highscores", err)
		return
	}
	s.writeDocument(w, http.StatusOK, list)
}

func (s *Server) handleAddScore(w http.ResponseWriter, r *http.Request) {
	var req AddScoreRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "Missing required fields: name and score")
		return
	}
	if req.Name == nil || len(req.Score) == 0 || string(req.Score) == "null" {
		s.writeError(w, r, http.StatusBadRequest, "Missing required fields: name and score")
		return
	}
	score, err := parseScore(req.Score)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "Score must be a number")
		return
	}
	if score < 0 {
		s.writeError(w, r, http.StatusBadRequest, "Score cannot be negative")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.Load(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to load highscores", err)
		return
	}
	rec := leaderboard.NewRecord(*req.Name, score, s.now())
	list = leaderboard.Admit(list, rec)
	if err := s.store.Save(r.Context(), list); err != nil {
		s.internalError(w, r, "failed to save highscores", err)
		return
	}
	s.logger.Info("highscore added", "name", rec.Name, "score", rec.Score, "id", rec.ID)
	s.changed(list)
	s.writeDocument(w, http.StatusCreated, list)
}

func (s *Server) handleReplaceScores(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "Missing highscore document")
		return
	}
	list, err := store.Decode(data)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	for i := range list {
		list[i].Name = leaderboard.NormalizeName(list[i].Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(r.Context(), list); err != nil {
		s.internalError(w, r, "failed to save highscores", err)
		return
	}
	s.changed(list)
	s.writeDocument(w, http.StatusOK, list)
}

var errNotInteger = errors.New("score is not an integer")

// parseScore accepts 12, 12.0 and "12".
func parseScore(raw json.RawMessage) (int, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.Atoi(strings.TrimSpace(s))
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	if v, err := n.Int64(); err == nil {
		return int(v), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, errNotInteger
	}
	return int(f), nil
}
