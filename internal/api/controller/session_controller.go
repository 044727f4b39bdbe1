package controller

import (
	"ctchen222/Tic-Tac-Toe-AI/internal/api/models"
	"ctchen222/Tic-Tac-Toe-AI/internal/api/response"
	"ctchen222/Tic-Tac-Toe-AI/internal/api/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionController handles session-related HTTP requests.
type SessionController struct {
	sessionService service.SessionService
}

// NewSessionController creates a new SessionController.
func NewSessionController(sessionService service.SessionService) *SessionController {
	return &SessionController{
		sessionService: sessionService,
	}
}

// Create handles the session creation endpoint.
func (sc *SessionController) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, response.NewError(http.StatusBadRequest, err))
			return
		}
	}

	resp, err := sc.sessionService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUnknownProfile) || errors.Is(err, service.ErrUnknownMode) {
			err = response.NewError(http.StatusBadRequest, err)
		}
		response.Fail(c, err)
		return
	}

	response.SuccessResponse(c, resp)
}

// Profiles lists the opponent tiers.
func (sc *SessionController) Profiles(c *gin.Context) {
	response.SuccessResponseList(c, sc.sessionService.Profiles())
}
