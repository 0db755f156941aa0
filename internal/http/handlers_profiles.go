package httpx

import (
	"errors"
	"net/http"
	"strconv"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
	"github.com/edumanage/edumanage/internal/ports"
)

// ProfileHandlers provides the admin HTTP surface over the profile store.
type ProfileHandlers struct {
	Store ports.ProfileStore
}

const maxProfileListLimit = 100 // Maximum number of profiles that can be requested in one call

// List handles HTTP requests to list profiles with filters and pagination.
// GET /api/profiles?role=&active=&search=&limit=&offset=.
func (h *ProfileHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, 50, maxProfileListLimit)

	q := ports.ProfileQuery{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	}
	if role := r.URL.Query().Get("role"); role != "" {
		if !domainauth.Role(role).Valid() {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_role", Err: errors.New("unknown role")})
			return
		}
		q.Role = domainauth.Role(role)
	}
	if active := r.URL.Query().Get("active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_filter", Err: errors.New("active must be a boolean")})
			return
		}
		q.Active = &v
	}

	profiles, err := h.Store.List(r.Context(), q)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"profiles": profiles,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetByID handles HTTP requests to get a profile by identity id.
// GET /api/profiles/{id}.
func (h *ProfileHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("profile id is required")})
		return
	}

	profile, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
			return
		}
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

// updateProfileRequest carries the updatable subset of a profile. Empty
// fields are left untouched by the merge write.
type updateProfileRequest struct {
	Role          domainauth.Role `json:"role"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	EmployeeID    string          `json:"employee_id"`
	StudentID     string          `json:"student_id"`
	Department    string          `json:"department"`
	Subjects      []string        `json:"subjects"`
	Grade         string          `json:"grade"`
	Section       string          `json:"section"`
	ParentContact string          `json:"parent_contact"`
}

// Update handles HTTP requests to merge changes into a profile.
// PUT /api/profiles/{id}.
func (h *ProfileHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("profile id is required")})
		return
	}

	var req updateProfileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Role != "" && !req.Role.Valid() {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_role", Err: errors.New("unknown role")})
		return
	}

	// Existence check first: a merge write would happily create a profile
	// with no identity behind it.
	if _, err := h.Store.Get(r.Context(), id); err != nil {
		if apperrors.IsNotFound(err) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
			return
		}
		WriteAppError(w, err)
		return
	}

	patch := domainauth.Profile{
		ID:            id,
		Role:          req.Role,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		EmployeeID:    req.EmployeeID,
		StudentID:     req.StudentID,
		Department:    req.Department,
		Subjects:      req.Subjects,
		Grade:         req.Grade,
		Section:       req.Section,
		ParentContact: req.ParentContact,
	}
	if err := h.Store.Set(r.Context(), patch, true); err != nil {
		WriteAppError(w, err)
		return
	}

	updated, err := h.Store.Get(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// Deactivate handles HTTP requests to soft-deactivate a profile. Profiles are
// never hard-deleted; the row stays for audit and re-activation.
// DELETE /api/profiles/{id}.
func (h *ProfileHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("profile id is required")})
		return
	}

	profile, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
			return
		}
		WriteAppError(w, err)
		return
	}

	profile.Active = false
	// Deactivation is a full write; the merge path can only turn Active on.
	if err := h.Store.Set(r.Context(), profile, false); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
