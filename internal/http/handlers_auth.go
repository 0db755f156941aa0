// Package httpx provides the HTTP surface for the edumanage auth system API.
package httpx

import (
	"context"
	"log/slog"
	"net/http"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
	"github.com/edumanage/edumanage/internal/service"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	SignUp(ctx context.Context, in service.SignUpInput) error
	SignIn(ctx context.Context, in service.SignInInput) error
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
	RefreshToken(ctx context.Context) (string, error)
	Snapshot() domainauth.Snapshot
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc    AuthServiceInterface
	Logger *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// snapshotView is the wire form of an auth snapshot.
type snapshotView struct {
	State       domainauth.State     `json:"state"`
	Identity    *domainauth.Identity `json:"identity,omitempty"`
	Profile     *domainauth.Profile  `json:"profile,omitempty"`
	FirstLogin  bool                 `json:"first_login,omitempty"`
	Destination string               `json:"destination,omitempty"`
}

func viewOf(snap domainauth.Snapshot) snapshotView {
	return snapshotView{
		State:       snap.State,
		Identity:    snap.Identity,
		Profile:     snap.Profile,
		FirstLogin:  snap.FirstLogin,
		Destination: snap.Destination,
	}
}

// SignUp handles account creation.
// POST /auth/signup.
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string          `json:"email"`
		Password  string          `json:"password"`
		FirstName string          `json:"first_name"`
		LastName  string          `json:"last_name"`
		Role      domainauth.Role `json:"role"`

		EmployeeID    string   `json:"employee_id"`
		StudentID     string   `json:"student_id"`
		Department    string   `json:"department"`
		Subjects      []string `json:"subjects"`
		Grade         string   `json:"grade"`
		Section       string   `json:"section"`
		ParentContact string   `json:"parent_contact"`

		Remember bool `json:"remember"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	// Role and the role-specific fields pass through as given; the service
	// persists them verbatim.
	err := h.Svc.SignUp(r.Context(), service.SignUpInput{
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          req.Role,
		EmployeeID:    req.EmployeeID,
		StudentID:     req.StudentID,
		Department:    req.Department,
		Subjects:      req.Subjects,
		Grade:         req.Grade,
		Section:       req.Section,
		ParentContact: req.ParentContact,
		Remember:      req.Remember,
	})
	if err != nil {
		// Sign-up rejections are requests the caller can fix, not failed
		// authentication.
		if apperrors.IsCredential(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "credential_error", Err: err})
			return
		}
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, viewOf(h.Svc.Snapshot()))
}

// SignIn handles interactive sign-in.
// POST /auth/signin.
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.Svc.SignIn(r.Context(), service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, viewOf(h.Svc.Snapshot()))
}

// SignOut handles sign-out. It never fails user-visibly.
// POST /auth/signout.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.SignOut(r.Context()); err != nil {
		// Sign-out swallows remote failures; this is unreachable in practice
		// but logged in case the contract ever changes underneath us.
		h.logger().Error("sign-out returned error", slog.Any("error", err))
	}
	WriteJSON(w, http.StatusOK, viewOf(h.Svc.Snapshot()))
}

// ResetPassword requests a password reset message.
// POST /auth/reset-password.
func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.Svc.ResetPassword(r.Context(), req.Email); err != nil {
		WriteAppError(w, err)
		return
	}
	// Accepted regardless of whether the address has an account.
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the address has an account, a reset email is on its way",
	})
}

// CompletePasswordReset installs a new password given a valid reset token.
// POST /auth/reset-password/complete.
func (h *AuthHandlers) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.Svc.CompletePasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Refresh force-mints a token for the active identity.
// POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.Svc.RefreshToken(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if token == "" {
		// No active identity; not an error.
		WriteJSON(w, http.StatusOK, map[string]any{"token": ""})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"token": token})
}

// Status reports the current auth snapshot.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, viewOf(h.Svc.Snapshot()))
}
