package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/campusconnect/campus-connect-api/internal/models"
	"github.com/campusconnect/campus-connect-api/internal/service"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
	"github.com/campusconnect/campus-connect-api/pkg/response"
)

// ExportHandler exposes admin directory export endpoints.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Request godoc
// @Summary Request a directory export
// @Description Queues an asynchronous export of the member directory. Poll the status endpoint for completion.
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body object true "Export format (csv or pdf)"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Format string `json:"format"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	job, err := h.service.Request(c.Request.Context(), models.ExportFormat(payload.Format), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.service.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// DownloadURL godoc
// @Summary Get a signed download link for a completed export
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/exports/{id}/download [get]
func (h *ExportHandler) DownloadURL(c *gin.Context) {
	token, expiresAt, err := h.service.DownloadURL(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":       "/admin/exports/download?token=" + token,
		"expiresAt": expiresAt,
	}, nil)
}

// Download streams a completed export when the signed token checks out.
func (h *ExportHandler) Download(c *gin.Context) {
	path, err := h.service.Resolve(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, "directory-export"+filepath.Ext(path))
}
