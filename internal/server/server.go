// Package server exposes the assessment pipeline over HTTP.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/export"
	"github.com/clearclaim/billaudit/internal/pipeline"
)

type Server struct {
	processor *pipeline.Processor
	exporter  *export.Service
	cfg       *common.Config
	schema    *jsonschema.Schema
	audit     *auditLog
	logger    *slog.Logger
}

func New(proc *pipeline.Processor, exporter *export.Service, cfg *common.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileAssessSchema()
	if err != nil {
		return nil, err
	}
	return &Server{
		processor: proc,
		exporter:  exporter,
		cfg:       cfg,
		schema:    schema,
		audit:     newAuditLog(cfg.Server.AuditLogCap),
		logger:    logger,
	}, nil
}

// Router constructs the Gin engine with registered routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)
	r.GET("/config", s.handleConfig)
	r.POST("/assess-bill", s.handleAssessBill)
	r.POST("/confirm-bill", s.handleConfirmBill)
	r.GET("/export", s.handleExport)
	return r
}
