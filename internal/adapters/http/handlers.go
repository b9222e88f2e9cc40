package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// ListTasks handles listing tasks, optionally filtered by status and subject
func (h *TaskHandler) ListTasks(c echo.Context) error {
	filter := ports.TaskFilter{}

	if status := c.QueryParam("status"); status != "" {
		s := entities.TaskStatus(status)
		if !s.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid status parameter")
		}
		filter.Status = &s
	}
	if subject := c.QueryParam("subject"); subject != "" {
		filter.Subject = &subject
	}

	tasks, err := h.taskService.ListTasks(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tasks)
}

// CreateTask handles task creation
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Create task failed", "error", err)
		return err
	}

	return c.JSON(http.StatusCreated, task)
}

// GetTask handles getting a task by ID
func (h *TaskHandler) GetTask(c echo.Context) error {
	task, err := h.taskService.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateTask handles partial task updates
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// CompleteTask handles marking a task completed
func (h *TaskHandler) CompleteTask(c echo.Context) error {
	task, err := h.taskService.CompleteTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask handles task deletion
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	if err := h.taskService.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Task deleted successfully"})
}

// SubjectHandler handles subject requests
type SubjectHandler struct {
	subjectService ports.SubjectService
	logger         *logger.Logger
}

// NewSubjectHandler creates a new subject handler
func NewSubjectHandler(subjectService ports.SubjectService, logger *logger.Logger) *SubjectHandler {
	return &SubjectHandler{
		subjectService: subjectService,
		logger:         logger,
	}
}

// ListSubjects handles listing subjects
func (h *SubjectHandler) ListSubjects(c echo.Context) error {
	subjects, err := h.subjectService.ListSubjects(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subjects)
}

// CreateSubject handles subject creation
func (h *SubjectHandler) CreateSubject(c echo.Context) error {
	var req ports.CreateSubjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	subject, err := h.subjectService.CreateSubject(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Create subject failed", "error", err)
		return err
	}

	return c.JSON(http.StatusCreated, subject)
}

// GetSubject handles getting a subject by ID
func (h *SubjectHandler) GetSubject(c echo.Context) error {
	subject, err := h.subjectService.GetSubject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subject)
}

// UpdateSubject handles subject updates
func (h *SubjectHandler) UpdateSubject(c echo.Context) error {
	var req ports.UpdateSubjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	subject, err := h.subjectService.UpdateSubject(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subject)
}

// DeleteSubject handles subject deletion
func (h *SubjectHandler) DeleteSubject(c echo.Context) error {
	if err := h.subjectService.DeleteSubject(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Subject deleted successfully"})
}

// EventHandler handles calendar event requests
type EventHandler struct {
	eventService ports.EventService
	logger       *logger.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService ports.EventService, logger *logger.Logger) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		logger:       logger,
	}
}

// ListEvents handles listing events in date order
func (h *EventHandler) ListEvents(c echo.Context) error {
	events, err := h.eventService.ListEvents(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

// CreateEvent handles event creation
func (h *EventHandler) CreateEvent(c echo.Context) error {
	var req ports.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	event, err := h.eventService.CreateEvent(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Create event failed", "error", err)
		return err
	}

	return c.JSON(http.StatusCreated, event)
}

// GetEvent handles getting an event by ID
func (h *EventHandler) GetEvent(c echo.Context) error {
	event, err := h.eventService.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, event)
}

// DeleteEvent handles event deletion
func (h *EventHandler) DeleteEvent(c echo.Context) error {
	if err := h.eventService.DeleteEvent(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Event deleted successfully"})
}

// AssessmentHandler handles assessment requests
type AssessmentHandler struct {
	assessmentService ports.AssessmentService
	logger            *logger.Logger
}

// NewAssessmentHandler creates a new assessment handler
func NewAssessmentHandler(assessmentService ports.AssessmentService, logger *logger.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		logger:            logger,
	}
}

// ListAssessments handles listing assessments.
// Query parameters: subject, from, to (RFC3339 or YYYY-MM-DD) and status.
func (h *AssessmentHandler) ListAssessments(c echo.Context) error {
	filter := ports.AssessmentFilter{}

	if subject := c.QueryParam("subject"); subject != "" {
		filter.Subject = &subject
	}
	if from := c.QueryParam("from"); from != "" {
		t, err := parseDateParam(from)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid from parameter")
		}
		filter.From = &t
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := parseDateParam(to)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid to parameter")
		}
		filter.To = &t
	}
	if status := c.QueryParam("status"); status != "" {
		s := entities.AssessmentStatus(strings.ToLower(status))
		filter.Status = &s
	}

	assessments, err := h.assessmentService.ListAssessments(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, assessments)
}

// CreateAssessment handles assessment creation
func (h *AssessmentHandler) CreateAssessment(c echo.Context) error {
	var req ports.CreateAssessmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	assessment, err := h.assessmentService.CreateAssessment(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Create assessment failed", "error", err)
		return err
	}

	return c.JSON(http.StatusCreated, assessment)
}

// GetAssessment handles getting an assessment by ID
func (h *AssessmentHandler) GetAssessment(c echo.Context) error {
	assessment, err := h.assessmentService.GetAssessment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, assessment)
}

// UpdateAssessment handles assessment updates
func (h *AssessmentHandler) UpdateAssessment(c echo.Context) error {
	var req ports.UpdateAssessmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	assessment, err := h.assessmentService.UpdateAssessment(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, assessment)
}

// DeleteAssessment handles assessment deletion
func (h *AssessmentHandler) DeleteAssessment(c echo.Context) error {
	if err := h.assessmentService.DeleteAssessment(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Assessment deleted successfully"})
}

func parseDateParam(v string) (time.Time, error) {
	return entities.ParseDate(v)
}
