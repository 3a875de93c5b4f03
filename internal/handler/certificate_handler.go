package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/certifyhq/certify-api/internal/models"
	"github.com/certifyhq/certify-api/internal/service"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
	"github.com/certifyhq/certify-api/pkg/response"
	"github.com/certifyhq/certify-api/pkg/validation"
)

// CertificateHandler exposes issuance, validation and download endpoints.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Issue godoc
// @Summary Issue a certificate for a student and course
// @Tags Certificates
// @Accept json
// @Produce json
// @Param payload body models.CertificateIssueRequest true "Issue payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /certificates [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	var req models.CertificateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	cert, err := h.certificates.Issue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cert)
}

// BulkIssue godoc
// @Summary Issue certificates for a whole class as a ZIP bundle
// @Tags Certificates
// @Produce application/zip
// @Param id path string true "Class ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /certificates/class/{id} [post]
func (h *CertificateHandler) BulkIssue(c *gin.Context) {
	zipName, err := h.certificates.BulkIssue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.certificates.OpenArtifact(zipName)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+zipName+`"`)
	c.Header("Content-Type", "application/zip")
	c.File(file.Name())

	// the bundle is single-use; queue its removal once served
	h.certificates.ScheduleCleanup(zipName)
}

// Mine godoc
// @Summary List the authenticated student's certificates
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /certificates/mine [get]
func (h *CertificateHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	certs, err := h.certificates.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// Validate godoc
// @Summary Publicly verify a certificate by its UUID
// @Tags Certificates
// @Produce json
// @Param uuid path string true "Certificate UUID"
// @Success 200 {object} response.Envelope
// @Router /certificates/validate/{uuid} [get]
func (h *CertificateHandler) Validate(c *gin.Context) {
	validationResult, err := h.certificates.Validate(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, validationResult, nil)
}

type cpfLookupRequest struct {
	CPF string `json:"cpf" binding:"required"`
}

// ByCPF godoc
// @Summary Publicly list certificates for a CPF as signed download links
// @Tags Certificates
// @Accept json
// @Produce json
// @Param payload body cpfLookupRequest true "CPF lookup payload"
// @Success 200 {object} response.Envelope
// @Router /certificates/lookup [post]
func (h *CertificateHandler) ByCPF(c *gin.Context) {
	var req cpfLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	cpf := strings.TrimSpace(req.CPF)
	if !validation.IsCPF(cpf) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "cpf must be exactly 11 digits"))
		return
	}
	downloads, err := h.certificates.ByCPF(c.Request.Context(), cpf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, downloads, nil)
}

// Download godoc
// @Summary Download a certificate PDF with a signed token
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /certificates/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, relPath, err := h.certificates.OpenSigned(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+relPath+`"`)
	c.Header("Content-Type", "application/pdf")
	c.File(file.Name())
}

// DownloadByUUID godoc
// @Summary Download a certificate PDF by its UUID
// @Tags Certificates
// @Produce application/pdf
// @Param uuid path string true "Certificate UUID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /certificates/{uuid}/download [get]
func (h *CertificateHandler) DownloadByUUID(c *gin.Context) {
	file, relPath, err := h.certificates.OpenByUUID(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+relPath+`"`)
	c.Header("Content-Type", "application/pdf")
	c.File(file.Name())
}

// Templates godoc
// @Summary List available certificate templates
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /certificates/templates [get]
func (h *CertificateHandler) Templates(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.certificates.Templates(), nil)
}
