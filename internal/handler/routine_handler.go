package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/middleware"
	"github.com/noah-isme/campus-routine-api/internal/models"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
	"github.com/noah-isme/campus-routine-api/pkg/response"
)

type routineService interface {
	List(ctx context.Context, filter models.ScheduleEntryFilter) ([]models.ScheduleEntry, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ScheduleEntry, error)
	ListForTeacher(ctx context.Context, teacher string) ([]models.ScheduleEntry, error)
	Check(ctx context.Context, req dto.CheckRoutineEntryRequest) (*dto.CheckRoutineEntryResponse, error)
	Create(ctx context.Context, req dto.RoutineEntryRequest) (*models.ScheduleEntry, error)
	Update(ctx context.Context, id string, req dto.UpdateRoutineEntryRequest) (*models.ScheduleEntry, error)
	Delete(ctx context.Context, id string) error
	Grid(ctx context.Context, day models.Weekday) (*models.GridView, bool, error)
}

// RoutineHandler exposes the weekly routine endpoints.
type RoutineHandler struct {
	service routineService
}

// NewRoutineHandler constructs the handler.
func NewRoutineHandler(svc routineService) *RoutineHandler {
	return &RoutineHandler{service: svc}
}

// List godoc
// @Summary List routine entries
// @Tags Routines
// @Produce json
// @Param day query string false "Weekday"
// @Param room query string false "Room"
// @Param building query string false "Building"
// @Param teacher query string false "Teacher"
// @Param course_code query string false "Course code"
// @Param section query string false "Section"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /routines [get]
func (h *RoutineHandler) List(c *gin.Context) {
	day, err := dayFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.ScheduleEntryFilter{
		Day:        day,
		Room:       strings.TrimSpace(c.Query("room")),
		Building:   strings.TrimSpace(c.Query("building")),
		Teacher:    strings.TrimSpace(c.Query("teacher")),
		CourseCode: strings.TrimSpace(c.Query("course_code")),
		Section:    strings.TrimSpace(c.Query("section")),
		SortBy:     c.Query("sort"),
		SortOrder:  c.Query("order"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	entries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Me godoc
// @Summary Routine of the authenticated teacher
// @Tags Routines
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /routines/me [get]
func (h *RoutineHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entries, err := h.service.ListForTeacher(c.Request.Context(), claims.FullName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Grid godoc
// @Summary Room by time slot grid
// @Tags Routines
// @Produce json
// @Param day query string false "Weekday; omit for the whole week"
// @Success 200 {object} response.Envelope
// @Router /routines/grid [get]
func (h *RoutineHandler) Grid(c *gin.Context) {
	day, err := dayFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	grid, hit, err := h.service.Grid(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil, responseMeta(c, hit))
}

// Get godoc
// @Summary Get routine entry
// @Tags Routines
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /routines/{id} [get]
func (h *RoutineHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	setETag(c, entry.Version)
	response.JSON(c, http.StatusOK, entry, nil)
}

// Check godoc
// @Summary Check a placement for conflicts without saving
// @Tags Routines
// @Accept json
// @Produce json
// @Param payload body dto.CheckRoutineEntryRequest true "Candidate entry"
// @Success 200 {object} response.Envelope
// @Router /routines/check [post]
func (h *RoutineHandler) Check(c *gin.Context) {
	var req dto.CheckRoutineEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Create godoc
// @Summary Create routine entry
// @Tags Routines
// @Accept json
// @Produce json
// @Param payload body dto.RoutineEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /routines [post]
func (h *RoutineHandler) Create(c *gin.Context) {
	var req dto.RoutineEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceIDKey, entry.ID)
	setETag(c, entry.Version)
	response.Created(c, entry)
}

// Update godoc
// @Summary Replace routine entry
// @Tags Routines
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param If-Match header string false "Expected version"
// @Param payload body dto.UpdateRoutineEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /routines/{id} [put]
func (h *RoutineHandler) Update(c *gin.Context) {
	var req dto.UpdateRoutineEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.Version == 0 {
		version, err := versionFromIfMatch(c.GetHeader("If-Match"))
		if err != nil {
			response.Error(c, err)
			return
		}
		req.Version = version
	}
	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	setETag(c, entry.Version)
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete routine entry
// @Tags Routines
// @Param id path string true "Entry ID"
// @Success 204
// @Router /routines/{id} [delete]
func (h *RoutineHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func setETag(c *gin.Context, version int) {
	c.Header("ETag", fmt.Sprintf("%q", strconv.Itoa(version)))
}

// versionFromIfMatch accepts `3`, `"3"` and `W/"3"`. An absent header yields 0.
func versionFromIfMatch(header string) (int, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "If-Match must carry a positive entry version")
	}
	return version, nil
}
