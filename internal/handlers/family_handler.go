package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"familybudget/internal/models"
	"familybudget/internal/service"
)

// FamilyHandler serves the family, membership and invite endpoints
type FamilyHandler struct {
	familyService     *service.FamilyService
	membershipService *service.MembershipService
	inviteService     *service.InviteService
	logger            *logrus.Logger
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService, membershipService *service.MembershipService, inviteService *service.InviteService, logger *logrus.Logger) *FamilyHandler {
	return &FamilyHandler{
		familyService:     familyService,
		membershipService: membershipService,
		inviteService:     inviteService,
		logger:            logger,
	}
}

type familyNameRequest struct {
	Name string `json:"name"`
}

// CreateFamily creates a family owned by the caller
func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req familyNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	family, err := h.familyService.CreateFamily(r.Context(), userID, req.Name)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, family)
}

// GetFamily returns the caller's family and role
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	current, err := h.familyService.GetCurrentFamily(r.Context(), userID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, current)
}

// RenameFamily changes the family name (owner only)
func (h *FamilyHandler) RenameFamily(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req familyNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	family, err := h.familyService.RenameFamily(r.Context(), userID, req.Name)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, family)
}

// DeleteFamily removes the caller's family (owner only)
func (h *FamilyHandler) DeleteFamily(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	if err := h.familyService.DeleteFamily(r.Context(), userID); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMembers lists the caller's family roster
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	members, err := h.membershipService.ListMembers(r.Context(), userID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, members)
}

type membershipRequest struct {
	MembershipID int64  `json:"membership_id"`
	Role         string `json:"role"`
}

// RemoveMember removes another member from the caller's family
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req membershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	if err := h.membershipService.RemoveMember(r.Context(), userID, req.MembershipID); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangeRole sets another member's role; promoting to owner transfers ownership
func (h *FamilyHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req membershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	// An unknown role parses to the zero Role, which the service rejects
	role, _ := models.ParseRole(req.Role)
	if err := h.membershipService.ChangeRole(r.Context(), userID, req.MembershipID, role); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type assignHeadRequest struct {
	UserID int64 `json:"user_id"`
}

// AssignHead hands ownership to another member, addressed by user id
func (h *FamilyHandler) AssignHead(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req assignHeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	if err := h.membershipService.AssignHead(r.Context(), userID, req.UserID); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Leave ends the caller's own membership
func (h *FamilyHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	if err := h.membershipService.Leave(r.Context(), userID); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	Email string `json:"email"`
}

type inviteResponse struct {
	Code      string `json:"code"`
	EmailSent bool   `json:"email_sent"`
}

// CreateInvite issues a single-use invite code, optionally mailed
func (h *FamilyHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	result, err := h.inviteService.CreateInvite(r.Context(), userID, req.Email)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, inviteResponse{
		Code:      result.Invite.Code,
		EmailSent: result.EmailSent,
	})
}

type joinRequest struct {
	Code string `json:"code"`
}

// Join redeems an invite code for the caller
func (h *FamilyHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	membership, err := h.membershipService.Join(r.Context(), userID, req.Code)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, membership)
}
