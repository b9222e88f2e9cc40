package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// TimetableHandler handles the versioned weekly timetable
type TimetableHandler struct {
	timetableService ports.TimetableService
	logger           *logger.Logger
}

// NewTimetableHandler creates a new timetable handler
func NewTimetableHandler(timetableService ports.TimetableService, logger *logger.Logger) *TimetableHandler {
	return &TimetableHandler{
		timetableService: timetableService,
		logger:           logger,
	}
}

// GetTimetable handles reading the current timetable
func (h *TimetableHandler) GetTimetable(c echo.Context) error {
	tt, err := h.timetableService.GetTimetable(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tt)
}

// SaveTimetable handles a versioned save. A stale version answers 409 with the
// latest document; a successful save answers 200 with the new document.
func (h *TimetableHandler) SaveTimetable(c echo.Context) error {
	var req ports.SaveTimetableRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.timetableService.SaveTimetable(c.Request().Context(), req)
	if err != nil {
		return err
	}

	if res.Conflict {
		return c.JSON(http.StatusConflict, res)
	}

	return c.JSON(http.StatusOK, res.Timetable)
}

// StudyPlanHandler handles study plan computation
type StudyPlanHandler struct {
	studyPlanService ports.StudyPlanService
	logger           *logger.Logger
}

// NewStudyPlanHandler creates a new study plan handler
func NewStudyPlanHandler(studyPlanService ports.StudyPlanService, logger *logger.Logger) *StudyPlanHandler {
	return &StudyPlanHandler{
		studyPlanService: studyPlanService,
		logger:           logger,
	}
}

// GetStudyPlan handles GET /study-plan?dailyHours=&windowDays=
func (h *StudyPlanHandler) GetStudyPlan(c echo.Context) error {
	req := ports.StudyPlanRequest{}

	if v := c.QueryParam("dailyHours"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid dailyHours parameter")
		}
		req.DailyHours = &hours
	}

	if v := c.QueryParam("windowDays"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid windowDays parameter")
		}
		req.WindowDays = &days
	}

	plan, err := h.studyPlanService.ComputePlan(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, plan)
}
