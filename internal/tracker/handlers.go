package tracker

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
	"github.com/buildtrack/buildtrack-backend/internal/filestore"
	"github.com/buildtrack/buildtrack-backend/internal/httputil"
	"github.com/buildtrack/buildtrack-backend/internal/receiptparser"
	"github.com/buildtrack/buildtrack-backend/internal/utils"
)

// ParseQueue accepts background parse jobs and reports their outcome.
type ParseQueue interface {
	Submit(job receiptparser.Job) (string, error)
	Status(id string) (receiptparser.TaskStatus, bool)
}

type Handler struct {
	store     *Storage
	authz     *Authorizer
	files     filestore.Store
	queue     ParseQueue
	validate  *validator.Validate
	maxUpload int64
}

func NewHandler(store *Storage, files filestore.Store, queue ParseQueue, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		store:     store,
		authz:     NewAuthorizer(store),
		files:     files,
		queue:     queue,
		validate:  newValidator(),
		maxUpload: maxUpload,
	}
}

// currentUser returns the session's user id, answering 401 when the request
// got past the session middleware without one.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
	}
	return userID, ok
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	return parseUUID(param, chi.URLParam(r, param))
}

// deleteFailed is the message for a failed delete of what.
func deleteFailed(what string, err error) string {
	if errors.Is(err, apperr.ErrConflict) {
		return "Cannot delete " + what + " while receipts are assigned to it"
	}
	return "Failed to delete " + what
}

// ---- Clients ----

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	clients, err := h.store.ListClients(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, "ListClients", userID, err, "Failed to fetch clients")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, clients)
}

// ownedClient parses {id} and checks the caller owns that client.
func (h *Handler) ownedClient(r *http.Request, userID string) (uuid.UUID, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return uuid.Nil, err
	}
	return id, h.authz.Client(r.Context(), userID, id)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedClient(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "GetClient", chi.URLParam(r, "id"), err, "Failed to fetch client")
		return
	}

	client, err := h.store.GetClient(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, "GetClient", id.String(), err, "Failed to fetch client")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, client)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createClientRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "CreateClient", "", err, "Failed to create client")
		return
	}

	client := Client{
		UserID:  userID,
		Name:    strings.TrimSpace(req.Name),
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Notes:   req.Notes,
	}
	if err := h.store.CreateClient(r.Context(), &client); err != nil {
		httputil.WriteError(w, r, "CreateClient", "", err, "Failed to create client")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, client)
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedClient(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "UpdateClient", chi.URLParam(r, "id"), err, "Failed to update client")
		return
	}

	var req updateClientRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "UpdateClient", id.String(), err, "Failed to update client")
		return
	}

	client, err := h.store.UpdateClient(r.Context(), id, req.changes())
	if err != nil {
		httputil.WriteError(w, r, "UpdateClient", id.String(), err, "Failed to update client")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, client)
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedClient(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "DeleteClient", chi.URLParam(r, "id"), err, "Failed to delete client")
		return
	}

	if err := h.store.DeleteClient(r.Context(), id); err != nil {
		httputil.WriteError(w, r, "DeleteClient", id.String(), err, deleteFailed("client", err))
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Client deleted successfully")
}

// ---- Projects ----

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	projects, err := h.store.ListProjects(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, "ListProjects", userID, err, "Failed to fetch projects")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, projects)
}

func (h *Handler) ownedProject(r *http.Request, userID, param string) (uuid.UUID, error) {
	id, err := pathID(r, param)
	if err != nil {
		return uuid.Nil, err
	}
	return id, h.authz.Project(r.Context(), userID, id)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedProject(r, userID, "id")
	if err != nil {
		httputil.WriteError(w, r, "GetProject", chi.URLParam(r, "id"), err, "Failed to fetch project")
		return
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, "GetProject", id.String(), err, "Failed to fetch project")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, project)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	project, err := h.buildProject(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "CreateProject", "", err, "Failed to create project")
		return
	}

	if err := h.store.CreateProject(r.Context(), project); err != nil {
		httputil.WriteError(w, r, "CreateProject", "", err, "Failed to create project")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, project)
}

func (h *Handler) buildProject(r *http.Request, userID string) (*Project, error) {
	var req createProjectRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		return nil, err
	}
	clientID, err := parseUUID("clientId", req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := h.authz.Client(r.Context(), userID, clientID); err != nil {
		return nil, err
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("endDate", req.EndDate)
	if err != nil {
		return nil, err
	}

	p := &Project{
		ClientID:    clientID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      req.Status,
		Budget:      req.Budget,
		StartDate:   start,
		EndDate:     end,
	}
	if req.ActualCost != nil {
		p.ActualCost = *req.ActualCost
	}
	return p, nil
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedProject(r, userID, "id")
	if err != nil {
		httputil.WriteError(w, r, "UpdateProject", chi.URLParam(r, "id"), err, "Failed to update project")
		return
	}

	var req updateProjectRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "UpdateProject", id.String(), err, "Failed to update project")
		return
	}
	c, err := req.changes()
	if err != nil {
		httputil.WriteError(w, r, "UpdateProject", id.String(), err, "Failed to update project")
		return
	}
	// moving a project requires owning the destination client
	if clientID, moved := c["client_id"].(uuid.UUID); moved {
		if err := h.authz.Client(r.Context(), userID, clientID); err != nil {
			httputil.WriteError(w, r, "UpdateProject", id.String(), err, "Failed to update project")
			return
		}
	}

	project, err := h.store.UpdateProject(r.Context(), id, c)
	if err != nil {
		httputil.WriteError(w, r, "UpdateProject", id.String(), err, "Failed to update project")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, project)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedProject(r, userID, "id")
	if err != nil {
		httputil.WriteError(w, r, "DeleteProject", chi.URLParam(r, "id"), err, "Failed to delete project")
		return
	}

	if err := h.store.DeleteProject(r.Context(), id); err != nil {
		httputil.WriteError(w, r, "DeleteProject", id.String(), err, deleteFailed("project", err))
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Project deleted successfully")
}

func (h *Handler) ListProjectContracts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	projectID, err := h.ownedProject(r, userID, "id")
	if err != nil {
		httputil.WriteError(w, r, "ListContracts", chi.URLParam(r, "id"), err, "Failed to fetch contracts")
		return
	}

	contracts, err := h.store.ListContracts(r.Context(), projectID)
	if err != nil {
		httputil.WriteError(w, r, "ListContracts", projectID.String(), err, "Failed to fetch contracts")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contracts)
}

func (h *Handler) ListProjectReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	projectID, err := h.ownedProject(r, userID, "id")
	if err != nil {
		httputil.WriteError(w, r, "ListProjectReceipts", chi.URLParam(r, "id"), err, "Failed to fetch receipts")
		return
	}

	receipts, err := h.store.ListProjectReceipts(r.Context(), projectID)
	if err != nil {
		httputil.WriteError(w, r, "ListProjectReceipts", projectID.String(), err, "Failed to fetch receipts")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipts)
}
