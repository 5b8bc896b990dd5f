package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"saas-compare/db/postgres"
	"saas-compare/decision/catalog"
	"saas-compare/decision/comparison"
	"saas-compare/decision/report"
	"saas-compare/decision/source"
	contracts "saas-compare/pkg/api"
	cmperrors "saas-compare/pkg/errors"
)

// =============================================================================
// COMPARE
// =============================================================================

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req contracts.CompareRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.compare(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// compare turns an API request into a report run. Entities come from the
// request body, then from entity_ids, then from the session's selection.
func (s *Server) compare(ctx context.Context, req contracts.CompareRequest) (*contracts.CompareResponse, error) {
	view := comparison.ViewFeatures
	if req.View != "" {
		v, err := comparison.ParseView(req.View)
		if err != nil {
			return nil, err
		}
		view = v
	}

	run := report.Request{
		Entities:      req.Entities,
		IDs:           req.EntityIDs,
		View:          view,
		TierSet:       req.TierSet,
		Tiers:         req.Tiers,
		Authenticated: req.Authenticated,
		MaxPrice:      req.MaxPrice,
		DiffOnly:      req.DiffOnly,
	}
	if len(run.Entities) == 0 && len(run.IDs) == 0 {
		if req.SessionID == "" {
			return nil, badRequest("entities, entity_ids or session_id is required")
		}
		selected, err := s.selector.Get(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		run.IDs = selected
	}

	res, err := s.reports.Run(ctx, run)
	if err != nil {
		return nil, err
	}
	resp := &contracts.CompareResponse{
		Matrix:       res.Matrix,
		Coverage:     res.Coverage,
		Policy:       res.Policy,
		Missing:      res.Missing,
		Source:       res.Source,
		FromFallback: res.FromFallback,
	}
	if req.Group {
		groups := res.Matrix.Partition()
		resp.Groups = &groups
	}
	return resp, nil
}

// =============================================================================
// ENTITIES
// =============================================================================

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := source.Query{
		Category: params.Get("category"),
		Kind:     params.Get("kind"),
		Search:   params.Get("q"),
	}
	if ids := params.Get("ids"); ids != "" {
		q.IDs = strings.Split(ids, ",")
	}
	if limit := params.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			s.writeError(w, badRequest("invalid limit %q", limit))
			return
		}
		q.Limit = n
	}

	res := s.source.Fetch(r.Context(), q)
	if !res.OK() {
		s.writeError(w, res.Err)
		return
	}
	s.jsonResponse(w, http.StatusOK, contracts.EntitiesResponse{
		Entities:     res.Entities,
		Missing:      res.Missing,
		Source:       res.Source,
		FromFallback: res.FromFallback,
	})
}

// =============================================================================
// SELECTIONS
// =============================================================================

func (s *Server) selectionResponse(w http.ResponseWriter, session string, ids []string, authenticated bool) {
	s.jsonResponse(w, http.StatusOK, contracts.SelectionResponse{
		SessionID:     session,
		IDs:           ids,
		MaxSelectable: s.limits.PolicyFor(authenticated).MaxSelectable,
	})
}

func authenticated(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("authenticated"))
	return v
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	ids, err := s.selector.Get(r.Context(), session)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.selectionResponse(w, session, ids, authenticated(r))
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	var req contracts.SelectionRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ids, err := s.selector.Set(r.Context(), session, s.limits.PolicyFor(req.Authenticated), req.IDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.selectionResponse(w, session, ids, req.Authenticated)
}

func (s *Server) handleAddSelection(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	var req contracts.SelectionRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ids, err := s.selector.Add(r.Context(), session, s.limits.PolicyFor(req.Authenticated), req.IDs...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.selectionResponse(w, session, ids, req.Authenticated)
}

func (s *Server) handleRemoveSelection(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	ids, err := s.selector.Remove(r.Context(), session, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.selectionResponse(w, session, ids, authenticated(r))
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := s.selector.Clear(r.Context(), chi.URLParam(r, "session")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SAVED COMPARISONS
// =============================================================================

func (s *Server) handleSaveComparison(w http.ResponseWriter, r *http.Request) {
	var req contracts.SaveComparisonRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	view, err := comparison.ParseView(req.View)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.TierSet != "" {
		if _, err := catalog.LookupTierSet(req.TierSet); err != nil {
			s.writeError(w, err)
			return
		}
	}

	saved := &postgres.SavedComparison{
		Name:      req.Name,
		View:      view,
		TierSet:   req.TierSet,
		EntityIDs: req.EntityIDs,
	}
	if err := saved.Validate(); err != nil {
		s.writeError(w, badRequest("%v", err))
		return
	}
	if err := s.comparisons.Save(r.Context(), saved); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, saved)
}

func (s *Server) handleListComparisons(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, badRequest("invalid limit %q", v))
			return
		}
		limit = n
	}
	list, err := s.comparisons.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []*postgres.SavedComparison{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"comparisons": list,
	})
}

// handleGetComparison rebuilds a saved comparison from current catalog data.
func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	id, ok := s.comparisonID(w, r)
	if !ok {
		return
	}
	saved, err := s.comparisons.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.compare(r.Context(), contracts.CompareRequest{
		EntityIDs:     saved.EntityIDs,
		View:          string(saved.View),
		TierSet:       saved.TierSet,
		Authenticated: true,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"comparison": saved,
		"result":     resp,
	})
}

func (s *Server) handleDeleteComparison(w http.ResponseWriter, r *http.Request) {
	id, ok := s.comparisonID(w, r)
	if !ok {
		return
	}
	if err := s.comparisons.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) comparisonID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(w, cmperrors.NewNotFoundError("comparison", raw))
		return uuid.UUID{}, false
	}
	return id, true
}
