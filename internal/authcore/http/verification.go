package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haulaway/authcore/internal/authcore/service"
	"github.com/haulaway/authcore/pkg/httpx"
	"github.com/haulaway/authcore/pkg/slogx"
)

// VerificationHandler serves the /v1/verification/sessions endpoints.
type VerificationHandler struct {
	VerificationService *service.VerificationService
}

type createSessionRequest struct {
	Phone string `json:"phone"`
}

type verifyCodeRequest struct {
	Code string `json:"code"`
}

// HandleCreate godoc
//
//	@Summary		Create Verification Session
//	@Description	Starts a phone verification: a one-time code is dispatched over SMS and an opaque
//	@Description	session id is returned. The code itself never appears in the response.
//	@Tags			Verification
//	@Accept			json
//	@Produce		json
//	@Param			request	body		createSessionRequest	true	"phone"
//	@Success		201		{object}	SessionResponse			"session_id"
//	@Failure		400		{object}	httpx.ErrorResponse		"error, error_description"
//	@Failure		500		{object}	httpx.ErrorResponse		"error, error_description"
//	@Router			/v1/verification/sessions [post].
func (h *VerificationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var body createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Phone == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "phone is required")
		return
	}

	sessionID, err := h.VerificationService.StartVerification(ctx, body.Phone)
	if err != nil {
		log.Error("verification start failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, SessionResponse{SessionID: sessionID})
}

// HandleVerify godoc
//
//	@Summary		Verify Code
//	@Description	Checks the submitted code against the session. On success the session is consumed and a
//	@Description	token pair is returned. A wrong code leaves the session in place for another attempt. A
//	@Description	session that expired (or never existed) yields 410 with the machine-readable code
//	@Description	"verification_expired" so clients restart the flow instead of retrying.
//	@Tags			Verification
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"session id"
//	@Param			request	body		verifyCodeRequest	true	"code"
//	@Success		200		{object}	TokenResponse		"access_token, refresh_token, token_type, expires_in"
//	@Failure		400		{object}	httpx.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	httpx.ErrorResponse	"error, error_description"
//	@Failure		410		{object}	httpx.ErrorResponse	"error=verification_expired"
//	@Failure		500		{object}	httpx.ErrorResponse	"error, error_description"
//	@Router			/v1/verification/sessions/{id}/verify [post].
func (h *VerificationHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	sessionID := r.PathValue("id")

	var body verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	pair, err := h.VerificationService.ConfirmCode(ctx, sessionID, body.Code, r.UserAgent(), httpx.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionExpired):
			writeSessionExpired(w)
		case errors.Is(err, service.ErrCodeInvalid):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_code", "The code is not valid.")
		default:
			log.Error("verification confirm failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	})
}

// HandlePing godoc
//
//	@Summary		Extend Verification Session
//	@Description	Bumps the session's idle clock while the user is still typing the code. Cannot extend
//	@Description	past the session's fixed code TTL.
//	@Tags			Verification
//	@Produce		json
//	@Param			id	path	string	true	"session id"
//	@Success		204	"no content"
//	@Failure		410	{object}	httpx.ErrorResponse	"error=verification_expired"
//	@Router			/v1/verification/sessions/{id}/ping [post].
func (h *VerificationHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	if err := h.VerificationService.ExtendSession(r.PathValue("id")); err != nil {
		writeSessionExpired(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete godoc
//
//	@Summary		Cancel Verification Session
//	@Description	Discards the session. Idempotent; deleting an unknown session is still 204.
//	@Tags			Verification
//	@Produce		json
//	@Param			id	path	string	true	"session id"
//	@Success		204	"no content"
//	@Router			/v1/verification/sessions/{id} [delete].
func (h *VerificationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.VerificationService.CancelSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionExpired(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusGone, "verification_expired",
		"The verification session has expired. Start a new one.")
}
