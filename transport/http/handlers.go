package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/service"
)

// loginRequest is the body of both login endpoints
type loginRequest struct {
	Challenge  string            `json:"challenge"`
	Token      string            `json:"token"`
	SignedData core.SignedProof  `json:"signedData"`
	Metadata   map[string]string `json:"metadata"`
}

// userInfo is the identity part of a successful login response
type userInfo struct {
	PublicKey string `json:"publicKey"`
	Address   string `json:"address"`
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	challengeService *service.AuthService
	bearerService    *service.AuthService
}

// NewAuthHandlers creates new auth handlers. bearerService may be nil when
// the bearer endpoints are disabled.
func NewAuthHandlers(challengeService, bearerService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		challengeService: challengeService,
		bearerService:    bearerService,
	}
}

// Challenge issues a challenge
func (h *AuthHandlers) Challenge(c *gin.Context) {
	issued, err := h.challengeService.CreateChallenge(c.Request.Context(), sessionID(c))
	if err != nil {
		respondError(c, err, "Failed to create challenge")
		return
	}

	c.JSON(http.StatusOK, issued)
}

// Verify checks a signed challenge
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	result, err := h.challengeService.Login(c.Request.Context(), service.LoginRequest{
		SessionID: sessionID(c),
		Token:     req.Token,
		Challenge: req.Challenge,
		Proof:     req.SignedData,
		Metadata:  requestMetadata(c, req.Metadata),
	})
	if err != nil {
		respondError(c, err, "Authentication failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"verified": true,
		"user": userInfo{
			PublicKey: result.PublicKey,
			Address:   result.Address,
		},
		"session": result,
	})
}

// Token issues a bearer challenge token as plain text
func (h *AuthHandlers) Token(c *gin.Context) {
	issued, err := h.bearerService.CreateChallenge(c.Request.Context(), "")
	if err != nil {
		respondError(c, err, "Failed to create challenge")
		return
	}

	c.String(http.StatusOK, issued.Token)
}

// TokenLogin verifies a proof over a bearer challenge token
func (h *AuthHandlers) TokenLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	result, err := h.bearerService.Login(c.Request.Context(), service.LoginRequest{
		Token:     req.Token,
		Challenge: req.Challenge,
		Proof:     req.SignedData,
		Metadata:  requestMetadata(c, req.Metadata),
	})
	if err != nil {
		respondError(c, err, "Authentication failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

// InspectToken decodes a bearer token without verifying it
func (h *AuthHandlers) InspectToken(c *gin.Context) {
	payload, err := h.bearerService.Inspect(c.Query("token"))
	if err != nil {
		respondError(c, err, "Failed to inspect token")
		return
	}

	c.JSON(http.StatusOK, payload)
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"mode":   h.challengeService.Mode(),
	})
}

// respondError maps client errors to 400 and everything else to 500
func respondError(c *gin.Context, err error, fallback string) {
	if core.IsClientError(err) {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": clientMessage(err),
			"kind":    core.Kind(err),
		})
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": fallback})
}

// clientMessage returns the message of the most specific core error in the chain
func clientMessage(err error) string {
	for _, known := range []error{
		core.ErrExpired,
		core.ErrReplay,
		core.ErrInvalidSignature,
		core.ErrChallengeMismatch,
		core.ErrChallengeRequired,
		core.ErrTokenRequired,
		core.ErrSessionRequired,
		core.ErrUnknownScheme,
		core.ErrChallengeFormat,
		core.ErrTokenFormat,
		core.ErrTokenSignature,
		core.ErrPublicKey,
		core.ErrSignatureFormat,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func requestMetadata(c *gin.Context, supplied map[string]string) map[string]string {
	meta := make(map[string]string, len(supplied)+2)
	for k, v := range supplied {
		meta[k] = v
	}
	meta["ip"] = c.ClientIP()
	if ua := c.Request.UserAgent(); ua != "" {
		meta["user_agent"] = ua
	}
	return meta
}
