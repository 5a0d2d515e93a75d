package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dbateam/secretvault/internal/common"
	"github.com/dbateam/secretvault/internal/server/models"
	"github.com/dbateam/secretvault/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps the sentinel error taxonomy to HTTP status codes.
// Anything unmatched is an internal error; its details stay in the log.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrorPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, common.ErrorSelfRequest):
		writeError(w, http.StatusBadRequest, "cannot request access to your own secret")
	case errors.Is(err, common.ErrorTagInUse):
		writeError(w, http.StatusConflict, "tag is referenced by secrets")
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		s.logger.Error(r.Context(), err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// --- secrets ---

type secretRequest struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
	TagID    string `json:"tag_id,omitempty"`
	Note     string `json:"note,omitempty"`
}

// secretResponse echoes a stored secret's metadata. The credential itself is
// only ever disclosed through the view endpoint.
type secretResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Host      string    `json:"host"`
	Username  string    `json:"username,omitempty"`
	TagID     string    `json:"tag_id,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSecretResponse(m *models.Secret) secretResponse {
	return secretResponse{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Host:      m.Host,
		Username:  m.Username,
		TagID:     m.TagID,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (s *Server) handleCreateSecret(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	secret, err := s.secrets.Create(r.Context(), actorFromContext(r.Context()), services.SecretInput{
		Host: req.Host, Username: req.Username, Secret: req.Secret, TagID: req.TagID, Note: req.Note,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSecretResponse(secret))
}

func (s *Server) handleUpdateSecret(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	secret, err := s.secrets.Update(r.Context(), actorFromContext(r.Context()),
		chi.URLParam(r, "secretID"), services.SecretInput{
			Host: req.Host, Username: req.Username, Secret: req.Secret, TagID: req.TagID, Note: req.Note,
		})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSecretResponse(secret))
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	view, err := s.secrets.GetView(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "secretID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       view.ID,
		"fields":   view.Fields,
		"readonly": view.Readonly,
	})
}

func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	err := s.secrets.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "secretID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SecretListFilter{
		TagID:   q.Get("tag_id"),
		OwnerID: q.Get("owner_id"),
		Search:  q.Get("search"),
	}

	summaries, err := s.secrets.List(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	type summaryResponse struct {
		ID        string    `json:"id"`
		Host      string    `json:"host"`
		Tag       string    `json:"tag,omitempty"`
		Owner     string    `json:"owner"`
		Note      string    `json:"note,omitempty"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	out := make([]summaryResponse, 0, len(summaries))
	for _, x := range summaries {
		out = append(out, summaryResponse{
			ID: x.ID, Host: x.Host, Tag: x.TagName, Owner: x.OwnerName, Note: x.Note,
			CreatedAt: x.CreatedAt, UpdatedAt: x.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- permissions ---

type permissionResponse struct {
	ID          string     `json:"id"`
	SecretID    string     `json:"secret_id"`
	ApplicantID string     `json:"applicant_id"`
	Agree       bool       `json:"agree"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

func toPermissionResponse(m *models.Permission) permissionResponse {
	return permissionResponse{
		ID:          m.ID,
		SecretID:    m.SecretID,
		ApplicantID: m.ApplicantID,
		Agree:       m.Agree,
		Reason:      m.Reason,
		CreatedAt:   m.CreatedAt,
		DecidedAt:   m.DecidedAt,
	}
}

func (s *Server) handleRequestAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	perm, err := s.permissions.Request(r.Context(), actorFromContext(r.Context()),
		chi.URLParam(r, "secretID"), req.Reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPermissionResponse(perm))
}

func (s *Server) handleBulkRequestAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SecretIDs []string `json:"secret_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	perms, err := s.permissions.BulkRequest(r.Context(), actorFromContext(r.Context()), req.SecretIDs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, toPermissionResponse(p))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleApprovePermission(w http.ResponseWriter, r *http.Request) {
	perm, err := s.permissions.Approve(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "permissionID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (s *Server) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PermissionIDs []string `json:"permission_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.permissions.BulkApprove(r.Context(), actorFromContext(r.Context()), req.PermissionIDs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	approved := make([]permissionResponse, 0, len(result.Approved))
	for _, p := range result.Approved {
		approved = append(approved, toPermissionResponse(p))
	}
	denied := make([]permissionResponse, 0, len(result.Denied))
	for _, p := range result.Denied {
		denied = append(denied, toPermissionResponse(p))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"approved":       approved,
		"denied":         denied,
		"approved_hosts": result.ApprovedHosts,
		"denied_hosts":   result.DeniedHosts,
	})
}

func (s *Server) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := s.permissions.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "permissionID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.permissions.List(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	type summaryResponse struct {
		ID        string     `json:"id"`
		Host      string     `json:"host"`
		Applicant string     `json:"applicant"`
		Owner     string     `json:"owner"`
		Agree     bool       `json:"agree"`
		CreatedAt time.Time  `json:"created_at"`
		DecidedAt *time.Time `json:"decided_at,omitempty"`
	}

	out := make([]summaryResponse, 0, len(summaries))
	for _, x := range summaries {
		out = append(out, summaryResponse{
			ID: x.ID, Host: x.Host, Applicant: x.ApplicantName, Owner: x.OwnerName,
			Agree: x.Agree, CreatedAt: x.CreatedAt, DecidedAt: x.DecidedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- tags ---

type tagRequest struct {
	Name string `json:"name"`
}

type tagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tag, err := s.tags.Create(r.Context(), actorFromContext(r.Context()), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tagResponse{ID: tag.ID, Name: tag.Name, CreatedAt: tag.CreatedAt})
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tag, err := s.tags.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "tagID"), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tagResponse{ID: tag.ID, Name: tag.Name, CreatedAt: tag.CreatedAt})
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	err := s.tags.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "tagID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.List(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}
