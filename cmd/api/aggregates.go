package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olhopublico/verbas/internal/response"
	"github.com/olhopublico/verbas/internal/store"
)

type GetPerNatureResponse = response.APIResponse[[]store.PerNatureView]
type GetPerLegislatorResponse = response.APIResponse[[]store.PerLegislatorView]
type GetBiggestSuppliersResponse = response.APIResponse[[]store.BiggestSupplierView]
type GetLatestRunsResponse = response.APIResponse[[]store.CollectionRun]

func (app *application) institutionFromPath(w http.ResponseWriter, r *http.Request) (store.Institution, bool) {
	siglum := strings.ToUpper(chi.URLParam(r, "siglum"))
	institution, err := app.store.Institutions.GetBySiglum(r.Context(), siglum)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "unknown institution: "+siglum)
		return store.Institution{}, false
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load institution: "+err.Error())
		return store.Institution{}, false
	}
	return institution, true
}

func (app *application) handleGetPerNature(w http.ResponseWriter, r *http.Request) {
	institution, ok := app.institutionFromPath(w, r)
	if !ok {
		return
	}

	views, err := app.store.Aggregates.PerNatureForInstitution(r.Context(), institution.ID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to query per-nature totals: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, GetPerNatureResponse{Success: true, Data: views})
}

func (app *application) handleGetPerLegislator(w http.ResponseWriter, r *http.Request) {
	institution, ok := app.institutionFromPath(w, r)
	if !ok {
		return
	}

	views, err := app.store.Aggregates.PerLegislatorForInstitution(r.Context(), institution.ID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to query per-legislator totals: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, GetPerLegislatorResponse{Success: true, Data: views})
}

func (app *application) handleGetBiggestSuppliers(w http.ResponseWriter, r *http.Request) {
	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid year parameter")
			return
		}
		year = parsed
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	views, err := app.store.Aggregates.BiggestSuppliers(r.Context(), year, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to query supplier ranking: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, GetBiggestSuppliersResponse{Success: true, Data: views})
}

func (app *application) handleGetLatestRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	runs, err := app.store.Runs.Latest(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to query collection runs: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, GetLatestRunsResponse{Success: true, Data: runs})
}
