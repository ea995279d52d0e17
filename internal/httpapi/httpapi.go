package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/service"
	"cargodesk/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/drafts", a.requireAuth(a.handleDrafts, RoleOperator, RoleAdmin))
	mux.HandleFunc("/api/v1/drafts/", a.requireAuth(a.handleDraftActions, RoleOperator, RoleAdmin))
	mux.HandleFunc("/api/v1/cargo/normalize", a.requireAuth(a.handleNormalize, RoleOperator, RoleAdmin))
	mux.HandleFunc("/api/v1/cargo/", a.requireAuth(a.handleCargoActions, RoleOperator, RoleAdmin))
	mux.HandleFunc("/api/v1/charges/compute", a.requireAuth(a.handleComputeCharges, RoleOperator, RoleAdmin))
	mux.HandleFunc("/api/v1/branches/", a.requireAuth(a.handleBranchActions, RoleOperator, RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CreateDraftRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := a.service.CreateDraft(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"draft": view})
}

// draftActionRequest is the union of the bodies the box, item and charge
// actions accept. Each action reads only its own fields; indices are required
// where an action targets a box or item.
type draftActionRequest struct {
	BoxIndex  *int   `json:"box_index"`
	ItemIndex *int   `json:"item_index"`
	Field     string `json:"field"`
	Value     any    `json:"value"`
	Key       string `json:"key"`
	Quantity  any    `json:"quantity"`
	Rate      any    `json:"rate"`
}

func (a *API) handleDraftActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/v1/drafts/")
	if len(parts) == 0 || len(parts) > 2 {
		writeError(w, http.StatusBadRequest, errors.New("invalid draft path"))
		return
	}
	draftID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			view, err := a.service.GetDraft(r.Context(), draftID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"draft": view})
		case http.MethodDelete:
			if err := a.service.DiscardDraft(r.Context(), draftID); err != nil {
				writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	ctx := r.Context()
	action := parts[1]
	switch action {
	case "submit", "update":
		var (
			res domain.SubmitResult
			err error
		)
		if action == "submit" {
			res, err = a.service.Submit(ctx, draftID)
		} else {
			res, err = a.service.UpdateCargo(ctx, draftID)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if actor, ok := service.ActorFromContext(ctx); ok {
			log.Printf("[httpapi] cargo %d saved as %s by %s", res.Cargo.ID, res.BookingNo, actorLabel(actor))
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": res})
		return
	case "header":
		var update domain.HeaderUpdate
		if err := decodeJSON(r, &update); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		a.writeDraft(w, func() (domain.DraftView, error) {
			return a.service.SetHeader(ctx, draftID, update)
		})
		return
	case "lookups":
		a.writeDraft(w, func() (domain.DraftView, error) {
			return a.service.RefreshLookups(ctx, draftID)
		})
		return
	}

	var req draftActionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	needBox, needItem := false, false
	switch action {
	case "remove-box", "box-weight", "add-item":
		needBox = true
	case "remove-item", "item":
		needBox, needItem = true, true
	}
	if needBox && req.BoxIndex == nil {
		writeError(w, http.StatusBadRequest, errors.New("box_index is required"))
		return
	}
	if needItem && req.ItemIndex == nil {
		writeError(w, http.StatusBadRequest, errors.New("item_index is required"))
		return
	}

	var apply func() (domain.DraftView, error)
	switch action {
	case "add-box":
		apply = func() (domain.DraftView, error) { return a.service.AddBox(ctx, draftID) }
	case "remove-box":
		apply = func() (domain.DraftView, error) { return a.service.RemoveBox(ctx, draftID, *req.BoxIndex) }
	case "box-weight":
		apply = func() (domain.DraftView, error) {
			return a.service.SetBoxWeight(ctx, draftID, *req.BoxIndex, req.Value)
		}
	case "add-item":
		apply = func() (domain.DraftView, error) { return a.service.AddItem(ctx, draftID, *req.BoxIndex) }
	case "remove-item":
		apply = func() (domain.DraftView, error) {
			return a.service.RemoveItem(ctx, draftID, *req.BoxIndex, *req.ItemIndex)
		}
	case "item":
		apply = func() (domain.DraftView, error) {
			return a.service.SetItem(ctx, draftID, *req.BoxIndex, *req.ItemIndex, req.Field, req.Value)
		}
	case "charge":
		apply = func() (domain.DraftView, error) {
			return a.service.SetCharge(ctx, draftID, req.Key, req.Quantity, req.Rate)
		}
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown draft action"))
		return
	}
	a.writeDraft(w, apply)
}

func (a *API) writeDraft(w http.ResponseWriter, apply func() (domain.DraftView, error)) {
	view, err := apply()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": view})
}

func (a *API) handleCargoActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/v1/cargo/")
	if len(parts) == 0 || len(parts) > 2 {
		writeError(w, http.StatusBadRequest, errors.New("invalid cargo path"))
		return
	}
	cargoID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || cargoID <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("cargo id must be a positive integer"))
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		cargo, err := a.service.GetCargo(r.Context(), cargoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cargo": cargo})
	case action == "invoice" && r.Method == http.MethodGet:
		invoice, err := a.service.GetInvoice(r.Context(), cargoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	case action == "edit" && r.Method == http.MethodPost:
		view, err := a.service.OpenCargoForEdit(r.Context(), cargoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"draft": view})
	case action == "" || action == "invoice" || action == "edit":
		writeMethodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown cargo action"))
	}
}

func (a *API) handleNormalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := a.service.Normalize(raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleComputeCharges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ChargeComputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": a.service.ComputeCharges(req)})
}

func (a *API) handleBranchActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	parts := pathParts(r.URL.Path, "/api/v1/branches/")
	if len(parts) != 2 || parts[1] != "next-booking-no" {
		writeError(w, http.StatusNotFound, errors.New("unknown branch action"))
		return
	}
	branchID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || branchID <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("branch id must be a positive integer"))
		return
	}

	next, err := a.service.NextBookingNo(r.Context(), branchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"branch_id": branchID, "booking_no": next})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// pathParts splits the path below prefix into its non-empty segments.
func pathParts(path string, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return nil
		}
	}
	return parts
}

// writeServiceError maps service and store errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var validation *service.ValidationError
	var persistence *service.PersistenceError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"missing": validation.Missing,
		})
	case errors.As(err, &persistence):
		log.Printf("[httpapi] WARN: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": "could not save the cargo, please try again",
		})
	case errors.Is(err, service.ErrDraftNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, store.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for actions whose body may be empty.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
