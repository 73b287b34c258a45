package http

import (
	"fmt"
	"net/http"

	"fintrack/internal/analytics"
	applog "fintrack/internal/log"
)

// reportCacheKey derives a cache key from the request shape. Relative
// periods resolve against today, so the key includes the resolved range
// only through the raw request fields plus the current date.
func reportCacheKey(kind string, req analytics.Request, today string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%t|%s",
		kind, req.Period, req.StartDate, req.EndDate, req.GroupBy, req.IncludeSavings, today)
}

func (s *Server) decodeAnalyticsRequest(w http.ResponseWriter, r *http.Request) (analytics.Request, bool) {
	var req analytics.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return analytics.Request{}, false
	}
	period, err := analytics.ParsePeriod(string(req.Period))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return analytics.Request{}, false
	}
	req.Period = period
	return req, true
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalyticsRequest(w, r)
	if !ok {
		return
	}

	key := reportCacheKey("report", req, s.reports.Today().String())
	if cached, found := s.reportCache.Get(key); found {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "analytics cache hit",
			applog.FieldPeriod, string(req.Period))
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.reports.Report(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.reportCache.Set(key, *result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSavingsAnalytics(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalyticsRequest(w, r)
	if !ok {
		return
	}

	key := reportCacheKey("savings", req, s.reports.Today().String())
	if cached, found := s.savingsCache.Get(key); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.reports.SavingsReport(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.savingsCache.Set(key, *result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Periods())
}
