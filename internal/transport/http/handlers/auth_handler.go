package handlers

import (
	"errors"
	"net/http"
	"strings"

	adminauthsvc "github.com/Monu5641000/Telegram-bot/internal/services/adminauth"
	"github.com/Monu5641000/Telegram-bot/internal/transport/http/dto"
	httperrors "github.com/Monu5641000/Telegram-bot/internal/transport/http/errors"
)

type AuthHandler struct {
	service *adminauthsvc.Service
}

func NewAuthHandler(service *adminauthsvc.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.AdminID <= 0 || strings.TrimSpace(req.Code) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "admin_id and code are required")
		return
	}

	token, err := h.service.Login(req.AdminID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, adminauthsvc.ErrUnauthorized):
			writeUnauthorized(w, "UNAUTHORIZED", "authentication failed")
		case errors.Is(err, adminauthsvc.ErrUnavailable):
			writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is not configured")
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LoginResponse{AccessToken: token})
}
