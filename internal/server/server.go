package server

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pokered-rl/trainctl/internal/supervisor"
)

// DefaultFrontendDir is where a built dashboard is looked for.
const DefaultFrontendDir = "frontend"

// Server exposes the training control surface over HTTP.
type Server struct {
	manager     *supervisor.Manager
	log         *logrus.Logger
	frontendDir string
}

// New wires a control server around the process manager.
func New(manager *supervisor.Manager, log *logrus.Logger) *Server {
	return &Server{
		manager:     manager,
		log:         log,
		frontendDir: DefaultFrontendDir,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestLogger(s.log))
	r.Use(gin.Recovery())
	r.Use(CORS())

	r.GET("/", s.root)
	if s.hasFrontend() {
		r.Static("/static", s.frontendDir)
	}

	api := r.Group("/api")
	{
		api.POST("/run", s.startRun)
		api.POST("/stop", s.stopRun)
		api.GET("/status", s.getStatus)
		api.GET("/evals", s.getEvals)
		api.GET("/checkpoints", s.getCheckpoints)
		api.GET("/runs", s.getRuns)
		api.GET("/tasks", s.getTasks)
	}
	return r
}
