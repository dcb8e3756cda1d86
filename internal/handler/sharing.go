package handler

import (
	"net/http"
	"strconv"

	"github.com/ifimgone/ifimgone/internal/model"
)

// RevokeToken revokes a sharing token
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TokenID   string          `json:"tokenId"`
		Reason    string          `json:"reason"`
		Performer model.Initiator `json:"performedBy"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.TokenID == "" {
		writeError(w, http.StatusBadRequest, "tokenId is required")
		return
	}
	if body.Reason == "" {
		body.Reason = "owner_revoked"
	}

	actor := model.Actor{ID: body.Performer.ID, Name: body.Performer.Name, Type: "user"}
	if actor.ID == "" {
		actor = model.SystemActor
	}

	if _, err := h.sharingSvc.RevokeToken(r.Context(), body.TokenID, body.Reason, actor); err != nil {
		h.serviceError(w, err, "revoke token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Token revoked",
	})
}

// ValidateAccess redeems a sharing token for a signed grant
func (h *Handler) ValidateAccess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	ip := getClientIP(r)
	ua := r.UserAgent()
	grant, err := h.sharingSvc.ValidateAccess(r.Context(), body.Token, &ip, &ua)
	if err != nil {
		h.serviceError(w, err, "validate access")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"valid":         grant.Valid,
		"token":         grant.Token,
		"contact":       grant.Contact,
		"remainingUses": grant.RemainingUses,
		"expiresIn":     grant.ExpiresIn,
	})
}

// AccessLogs returns audit entries for token activity
func (h *Handler) AccessLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.AuditFilter{
		TokenID: q.Get("tokenId"),
		ActorID: q.Get("contactId"),
		Action:  q.Get("action"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	logs, err := h.sharingSvc.AccessLogs(r.Context(), filter)
	if err != nil {
		h.serviceError(w, err, "access logs")
		return
	}
	if logs == nil {
		logs = []*model.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"logs":    logs,
	})
}

// Cleanup runs the expiry sweep and purges lapsed sharing tokens
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	now := timeNow()

	expired, err := h.activationSvc.CleanupExpired(r.Context(), now)
	if err != nil {
		h.serviceError(w, err, "cleanup expired requests")
		return
	}
	purged, err := h.sharingSvc.PurgeExpired(r.Context(), now)
	if err != nil {
		h.serviceError(w, err, "purge expired tokens")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result": map[string]interface{}{
			"expiredRequests": expired,
			"purgedTokens":    purged,
		},
	})
}

// SharingStats returns token usage statistics
func (h *Handler) SharingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sharingSvc.Stats(r.Context())
	if err != nil {
		h.serviceError(w, err, "sharing stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}
