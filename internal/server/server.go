package server

import (
	"ctchen222/Tic-Tac-Toe-AI/internal/api/controller"
	"ctchen222/Tic-Tac-Toe-AI/internal/api/response"
	"ctchen222/Tic-Tac-Toe-AI/internal/api/service"
	"ctchen222/Tic-Tac-Toe-AI/internal/hub"
	"ctchen222/Tic-Tac-Toe-AI/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-AI/internal/player"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("server")

type Server struct {
	hub            *hub.Hub
	sessionService service.SessionService
	sessions       *controller.SessionController
	upgrader       websocket.Upgrader
	engine         *gin.Engine
}

func NewServer(h *hub.Hub, sessionService service.SessionService) *Server {
	s := &Server{
		hub:            h,
		sessionService: sessionService,
		sessions:       controller.NewSessionController(sessionService),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.engine = s.routes()
	return s
}

// Engine returns the HTTP handler.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		response.SuccessResponse(c, gin.H{
			"status": "ok",
			"rooms":  s.hub.ActiveRooms(),
		})
	})

	api := r.Group("/api")
	api.POST("/sessions", s.sessions.Create)
	api.GET("/profiles", s.sessions.Profiles)

	r.GET("/ws", s.handleWebSocket)
	return r
}

// handleWebSocket authenticates the session token, upgrades the connection
// and passes a registration request to the hub.
func (s *Server) handleWebSocket(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("http.url", c.Request.URL.String()),
		attribute.String("http.method", c.Request.Method),
	))
	defer span.End()

	claims, err := s.sessionService.Parse(ctx, c.Query("token"))
	if err != nil {
		slog.WarnContext(ctx, "Rejected websocket connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid session token")
		response.Fail(c, response.NewError(http.StatusUnauthorized, err))
		return
	}
	profile, err := s.sessionService.Profile(claims.Profile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unknown profile in token")
		response.Fail(c, response.NewError(http.StatusUnauthorized, err))
		return
	}
	span.SetAttributes(
		attribute.String("session.id", claims.Subject),
		attribute.String("session.mode", string(claims.Mode)),
		attribute.String("profile.name", profile.Name),
	)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to upgrade connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	// Send the registration request to the hub for processing.
	s.hub.Register() <- &types.RegistrationRequest{
		Player:    player.NewPlayer(claims.Subject, conn),
		SessionID: claims.Subject,
		Mode:      claims.Mode,
		Profile:   profile,
		Ctx:       ctx, // Pass the context with the span
	}
}
