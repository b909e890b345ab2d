package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/middleware"
	"github.com/noah-isme/campus-routine-api/internal/models"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
)

type routineServiceMock struct {
	filter    models.ScheduleEntryFilter
	teacher   string
	updateReq dto.UpdateRoutineEntryRequest
	createErr error
	updateErr error
	deletedID string
	gridDay   models.Weekday
	entries   []models.ScheduleEntry
	checkResp *dto.CheckRoutineEntryResponse
}

func (m *routineServiceMock) List(ctx context.Context, filter models.ScheduleEntryFilter) ([]models.ScheduleEntry, *models.Pagination, error) {
	m.filter = filter
	return m.entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(m.entries)}, nil
}

func (m *routineServiceMock) Get(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			entry := e
			return &entry, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "routine entry not found")
}

func (m *routineServiceMock) ListForTeacher(ctx context.Context, teacher string) ([]models.ScheduleEntry, error) {
	m.teacher = teacher
	return m.entries, nil
}

func (m *routineServiceMock) Check(ctx context.Context, req dto.CheckRoutineEntryRequest) (*dto.CheckRoutineEntryResponse, error) {
	return m.checkResp, nil
}

func (m *routineServiceMock) Create(ctx context.Context, req dto.RoutineEntryRequest) (*models.ScheduleEntry, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.ScheduleEntry{ID: "new-id", CourseCode: req.CourseCode, Version: 1}, nil
}

func (m *routineServiceMock) Update(ctx context.Context, id string, req dto.UpdateRoutineEntryRequest) (*models.ScheduleEntry, error) {
	m.updateReq = req
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &models.ScheduleEntry{ID: id, Version: req.Version + 1}, nil
}

func (m *routineServiceMock) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *routineServiceMock) Grid(ctx context.Context, day models.Weekday) (*models.GridView, bool, error) {
	m.gridDay = day
	return &models.GridView{}, false, nil
}

func entryPayload() []byte {
	payload, _ := json.Marshal(dto.RoutineEntryRequest{
		CourseCode: "CSE101", Section: "A", Teacher: "Dr. Khan", Day: "Monday",
		StartTime: "09:00", EndTime: "10:30", Room: "201",
	})
	return payload
}

func TestRoutineHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &routineServiceMock{entries: []models.ScheduleEntry{{ID: "e1"}}}
	h := NewRoutineHandler(svc)

	c, w := newGinContext(http.MethodGet, "/routines?day=monday&room=201&teacher=Dr.%20Khan&page=2&limit=10&sort=room&order=desc", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Monday, svc.filter.Day)
	assert.Equal(t, "201", svc.filter.Room)
	assert.Equal(t, "Dr. Khan", svc.filter.Teacher)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 10, svc.filter.PageSize)
	assert.Equal(t, "room", svc.filter.SortBy)
	body := decodeEnvelope(t, w)
	assert.NotNil(t, body["pagination"])
}

func TestRoutineHandlerMeUsesTokenName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &routineServiceMock{}
	h := NewRoutineHandler(svc)

	c, w := newGinContext(http.MethodGet, "/routines/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t-1", FullName: "Dr. Khan", Role: models.RoleTeacher})
	h.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dr. Khan", svc.teacher)
}

func TestRoutineHandlerGetSetsETag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRoutineHandler(&routineServiceMock{entries: []models.ScheduleEntry{{ID: "e1", Version: 3}}})

	c, w := newGinContext(http.MethodGet, "/routines/e1", nil)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"3"`, w.Header().Get("ETag"))

	c, w = newGinContext(http.MethodGet, "/routines/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutineHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRoutineHandler(&routineServiceMock{})

	c, w := newGinContext(http.MethodPost, "/routines", entryPayload())
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "new-id", c.GetString(middleware.AuditResourceIDKey))
}

func TestRoutineHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issues := []models.ConflictIssue{{Kind: models.ConflictRoom, Message: "Room 201 is already booked"}}
	svc := &routineServiceMock{createErr: appErrors.WithDetails(appErrors.ErrScheduleConflict, "", issues)}
	h := NewRoutineHandler(svc)

	c, w := newGinContext(http.MethodPost, "/routines", entryPayload())
	h.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeEnvelope(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "SCHEDULE_CONFLICT", errBody["code"])
	assert.Len(t, errBody["details"], 1)
}

func TestRoutineHandlerCreateMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRoutineHandler(&routineServiceMock{})
	c, w := newGinContext(http.MethodPost, "/routines", []byte("{"))
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutineHandlerUpdateReadsIfMatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &routineServiceMock{}
	h := NewRoutineHandler(svc)

	c, w := newGinContext(http.MethodPut, "/routines/e1", entryPayload())
	c.Request.Header.Set("If-Match", `W/"4"`)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, svc.updateReq.Version)
	assert.Equal(t, `"5"`, w.Header().Get("ETag"))
}

func TestRoutineHandlerUpdateStaleVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &routineServiceMock{updateErr: appErrors.WithDetails(appErrors.ErrPreconditionFailed, "routine entry was modified", map[string]int{"current_version": 5})}
	h := NewRoutineHandler(svc)

	c, w := newGinContext(http.MethodPut, "/routines/e1", entryPayload())
	c.Request.Header.Set("If-Match", "2")
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Update(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	c, w = newGinContext(http.MethodPut, "/routines/e1", entryPayload())
	c.Request.Header.Set("If-Match", "abc")
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutineHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &routineServiceMock{}
	h := NewRoutineHandler(svc)

	c, w := newGinContext(http.MethodDelete, "/routines/e1", nil)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "e1", svc.deletedID)
}

func TestRoutineHandlerGridDay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &routineServiceMock{}
	h := NewRoutineHandler(svc)

	c, w := newGinContext(http.MethodGet, "/routines/grid?day=WEDNESDAY", nil)
	h.Grid(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Wednesday, svc.gridDay)
}

func TestVersionFromIfMatch(t *testing.T) {
	v, err := versionFromIfMatch("")
	require.NoError(t, err)
	assert.Zero(t, v)

	v, err = versionFromIfMatch(`"7"`)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = versionFromIfMatch("0")
	assert.Error(t, err)
}
