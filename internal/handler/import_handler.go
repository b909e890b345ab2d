package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/models"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
	"github.com/noah-isme/campus-routine-api/pkg/response"
)

const xlsContentType = "application/vnd.ms-excel"

type importService interface {
	Import(ctx context.Context, data []byte, opts dto.ImportOptions) (*models.ImportResult, error)
}

// ImportHandler accepts bulk routine uploads.
type ImportHandler struct {
	service  importService
	template func() ([]byte, error)
	maxBytes int64
}

// NewImportHandler constructs the handler. template renders the downloadable CSV template.
func NewImportHandler(svc importService, template func() ([]byte, error), maxBytes int64) *ImportHandler {
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	return &ImportHandler{service: svc, template: template, maxBytes: maxBytes}
}

// Import godoc
// @Summary Bulk import routine entries
// @Description Accepts CSV text (raw body or multipart field "file") or a legacy .xls workbook. The batch is committed only when every row is valid and conflict free.
// @Tags Routines
// @Accept text/csv
// @Accept multipart/form-data
// @Produce json
// @Param strict query bool false "Reject rows with missing columns (default true)"
// @Param dry_run query bool false "Validate without committing"
// @Param format query string false "csv or xls when sending a raw body"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /routines/import [post]
func (h *ImportHandler) Import(c *gin.Context) {
	opts, err := h.options(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, format, err := h.readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if format != "" {
		opts.Format = format
	}

	result, err := h.service.Import(c.Request.Context(), data, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Committed {
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	response.Created(c, result)
}

// Template godoc
// @Summary Download the bulk import template
// @Tags Routines
// @Produce text/csv
// @Success 200 {file} file
// @Router /routines/import/template [get]
func (h *ImportHandler) Template(c *gin.Context) {
	data, err := h.template()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "routine_import_template.csv", "text/csv; charset=utf-8", data)
}

func (h *ImportHandler) options(c *gin.Context) (dto.ImportOptions, error) {
	opts := dto.ImportOptions{Strict: true, Format: models.ImportFormatCSV}
	if raw := c.Query("strict"); raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, appErrors.Clone(appErrors.ErrValidation, "strict must be a boolean")
		}
		opts.Strict = strict
	}
	if raw := c.Query("dry_run"); raw != "" {
		dryRun, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, appErrors.Clone(appErrors.ErrValidation, "dry_run must be a boolean")
		}
		opts.DryRun = dryRun
	}
	switch strings.ToLower(c.Query("format")) {
	case "", string(models.ImportFormatCSV):
	case string(models.ImportFormatXLS):
		opts.Format = models.ImportFormatXLS
	default:
		return opts, appErrors.Clone(appErrors.ErrValidation, "format must be csv or xls")
	}
	return opts, nil
}

// readUpload returns the upload bytes and, when it can tell, the detected format.
func (h *ImportHandler) readUpload(c *gin.Context) ([]byte, models.ImportFormat, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, "", h.readError(err, "multipart field \"file\" is required")
		}
		file, err := header.Open()
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unable to open upload")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", h.readError(err, "unable to read upload")
		}
		var format models.ImportFormat
		if strings.EqualFold(filepath.Ext(header.Filename), ".xls") || header.Header.Get("Content-Type") == xlsContentType {
			format = models.ImportFormatXLS
		}
		return data, format, nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", h.readError(err, "unable to read upload")
	}
	if len(data) == 0 {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "upload is empty")
	}
	var format models.ImportFormat
	if c.ContentType() == xlsContentType {
		format = models.ImportFormatXLS
	}
	return data, format, nil
}

func (h *ImportHandler) readError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return appErrors.New(appErrors.ErrValidation.Code, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxBytes))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
}
