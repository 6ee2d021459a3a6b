package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clearclaim/billaudit/constants"
	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
)

// ConfirmBillRequest accepts a bill for processing, which registers it in the
// duplicate store (phase two of the lookup/commit contract).
type ConfirmBillRequest struct {
	Fingerprint string `json:"fingerprint" binding:"required"`
	BillID      string `json:"bill_id"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    constants.AppName,
		"version": constants.AppVersion,
		"purpose": "post-OCR medical bill validation and fraud assessment",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleConfig mirrors the running tuning knobs; connection secrets stay out.
func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"store_backend":        s.cfg.Store.Backend,
		"store_timeout":        s.cfg.Store.Timeout.String(),
		"default_currency":     s.cfg.Normalize.DefaultCurrency,
		"date_formats":         s.cfg.Normalize.DateFormats,
		"tolerance_abs_minor":  s.cfg.Arithmetic.AbsoluteToleranceMinor,
		"tolerance_rel":        s.cfg.Arithmetic.RelativeTolerance,
		"sanity_ceiling_minor": s.cfg.Arithmetic.SanityCeilingMinor,
		"similarity_threshold": s.cfg.Dedupe.SimilarityThreshold,
		"fraud_weights":        s.cfg.Fraud.Weights,
		"audit_log_cap":        s.cfg.Server.AuditLogCap,
	})
}

// handleAssessBill runs one extraction through the pipeline. Only a malformed
// request shape fails with a client error; everything else returns a
// best-effort assessment with explicit flags.
func (s *Server) handleAssessBill(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading request body: " + err.Error()})
		return
	}
	if err := validateShape(s.schema, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var raw entity.RawExtraction
	if err := json.Unmarshal(body, &raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decoding request: " + err.Error()})
		return
	}

	assessed, err := s.processor.Process(c.Request.Context(), &raw)
	if err != nil {
		s.logger.Error("server.assess.failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assessment aborted: " + err.Error()})
		return
	}

	s.audit.add(assessed)
	c.JSON(http.StatusOK, assessed)
}

func (s *Server) handleConfirmBill(c *gin.Context) {
	var req ConfirmBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assessed, ok := s.audit.byFingerprint(req.Fingerprint)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no assessed bill with that fingerprint; assess it first"})
		return
	}

	err := s.processor.Confirm(c.Request.Context(), assessed.Record, req.BillID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "committed", "fingerprint": req.Fingerprint})
	case errors.Is(err, common.ErrAlreadyExists):
		c.JSON(http.StatusOK, gin.H{"status": "already_exists", "fingerprint": req.Fingerprint})
	case errors.Is(err, common.ErrDependency):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "duplicate store unavailable: " + err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleExport(c *gin.Context) {
	data, err := s.exporter.AuditXLSX(s.audit.snapshot())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "building export: " + err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="billaudit-assessments.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
