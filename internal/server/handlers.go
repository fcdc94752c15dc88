package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/createMonster/arbradar-sub000/internal/service"
)

// envelope is the uniform response wrapper every endpoint uses.
type envelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Total      *int   `json:"total,omitempty"`
	Count      *int   `json:"count,omitempty"`
	Cached     *bool  `json:"cached,omitempty"`
	RouteStats any    `json:"routeStats,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	filters, err := parseRouteFilters(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	force, err := parseBool(r, "forceRefresh")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.svc.GetRoutes(r.Context(), filters, force)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		Success:    true,
		Data:       result.Data,
		Total:      &result.Total,
		Count:      &result.Count,
		Cached:     &result.Cached,
		RouteStats: result.Stats,
		Timestamp:  result.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	force, err := parseBool(r, "forceRefresh")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.svc.GetTickers(r.Context(), r.URL.Query().Get("exchange"), force)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      result.Data,
		Cached:    &result.Cached,
		Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleFundingRates(w http.ResponseWriter, r *http.Request) {
	force, err := parseBool(r, "forceRefresh")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.svc.GetFundingRates(r.Context(), r.URL.Query().Get("exchange"), force)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      result.Data,
		Cached:    &result.Cached,
		Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    s.svc.Health(),
	})
}

func (s *Server) handleForceUpdate(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.ForceUpdate(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		Success:   result.Success,
		Error:     result.Error,
		Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearCache()
	s.writeJSON(w, http.StatusOK, envelope{Success: true})
}

func parseRouteFilters(r *http.Request) (service.RouteFilters, error) {
	q := r.URL.Query()
	var f service.RouteFilters

	if raw := q.Get("minSpread"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("minSpread must be numeric: %q", raw)
		}
		f.MinSpread = &d
	}
	if raw := q.Get("minVolume"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("minVolume must be numeric: %q", raw)
		}
		f.MinVolume = &d
	}
	if raw := q.Get("exchanges"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				f.Exchanges = append(f.Exchanges, name)
			}
		}
	}
	f.Search = q.Get("search")
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return f, fmt.Errorf("limit must be a non-negative integer: %q", raw)
		}
		f.Limit = limit
	}
	return f, nil
}

func parseBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %q", key, raw)
	}
	return v, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, envelope{Success: false, Error: err.Error()})
}
