package handler

import (
	"net/http"

	"github.com/ifimgone/ifimgone/internal/model"
	"github.com/ifimgone/ifimgone/internal/service"
)

// RequestActivation opens a new emergency-activation request
func (h *Handler) RequestActivation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type            string          `json:"type"`
		Initiator       model.Initiator `json:"initiator"`
		UserID          string          `json:"userId"`
		Reason          string          `json:"reason"`
		UrgencyLevel    string          `json:"urgencyLevel"`
		ActivationLevel string          `json:"activationLevel"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := h.activationSvc.RequestActivation(r.Context(), service.RequestActivationInput{
		Type:            model.ActivationType(body.Type),
		Initiator:       body.Initiator,
		UserID:          body.UserID,
		Reason:          body.Reason,
		UrgencyLevel:    model.UrgencyLevel(body.UrgencyLevel),
		ActivationLevel: model.ActivationLevel(body.ActivationLevel),
	})
	if err != nil {
		h.serviceError(w, err, "request activation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"request": req,
	})
}

// GetActivation returns a single activation request
func (h *Handler) GetActivation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Request ID is required")
		return
	}

	req, err := h.activationSvc.Get(r.Context(), id)
	if err != nil {
		h.serviceError(w, err, "get activation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"request": req,
	})
}

// ListActiveActivations returns all non-terminal requests for a user
func (h *Handler) ListActiveActivations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	requests, err := h.activationSvc.ListActive(r.Context(), userID)
	if err != nil {
		h.serviceError(w, err, "list active activations")
		return
	}
	if requests == nil {
		requests = []*model.ActivationRequest{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"requests": requests,
	})
}

// SubmitVerification evaluates a verification submission for a request
func (h *Handler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Request ID is required")
		return
	}

	var body struct {
		Method    string          `json:"method"`
		Code      *string         `json:"code,omitempty"`
		Performer model.Initiator `json:"performedBy"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.activationSvc.SubmitVerification(r.Context(), id,
		model.VerificationMethod(body.Method), body.Code, h.verificationContext(r, body.Performer))
	if err != nil {
		h.serviceError(w, err, "submit verification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"valid":         result.Valid,
		"token":         result.Token,
		"remainingUses": result.RemainingUses,
		"expiresIn":     result.ExpiresIn,
		"request":       result.Request,
	})
}

// RejectActivation denies a pending request
func (h *Handler) RejectActivation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Request ID is required")
		return
	}

	var body struct {
		Reason    string          `json:"reason"`
		Performer model.Initiator `json:"performedBy"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Reason == "" {
		body.Reason = "verifier_denied"
	}

	req, err := h.activationSvc.RejectActivation(r.Context(), id, body.Reason, h.verificationContext(r, body.Performer))
	if err != nil {
		h.serviceError(w, err, "reject activation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"request": req,
	})
}

// CancelActivation cancels a request; idempotent on already-cancelled
func (h *Handler) CancelActivation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Request ID is required")
		return
	}

	var body struct {
		Reason    string          `json:"reason"`
		Performer model.Initiator `json:"performedBy"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Reason == "" {
		body.Reason = "user_initiated"
	}

	req, err := h.activationSvc.CancelActivation(r.Context(), id, body.Reason, h.verificationContext(r, body.Performer))
	if err != nil {
		h.serviceError(w, err, "cancel activation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"request": req,
	})
}

// GetAuditReport returns the aggregate risk report for a request
func (h *Handler) GetAuditReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Request ID is required")
		return
	}

	report, err := h.activationSvc.GetAuditReport(r.Context(), id)
	if err != nil {
		h.serviceError(w, err, "get audit report")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
	})
}

func (h *Handler) verificationContext(r *http.Request, performer model.Initiator) service.VerificationContext {
	ip := getClientIP(r)
	ua := r.UserAgent()
	actor := model.Actor{ID: performer.ID, Name: performer.Name, Type: "contact"}
	if actor.ID == "" {
		actor = model.Actor{ID: "anonymous", Name: "Unknown", Type: "contact"}
	}
	vctx := service.VerificationContext{Actor: actor}
	if ip != "" {
		vctx.IPAddress = &ip
	}
	if ua != "" {
		vctx.UserAgent = &ua
	}
	return vctx
}
