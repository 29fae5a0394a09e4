package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shiftline/backend/api/transport"
	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/pkg/httpcontext"
	"github.com/shiftline/backend/repository"
	taskUC "github.com/shiftline/backend/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	if h.actorID(ctx) == "" {
		return
	}

	filter := repository.TaskFilter{
		Station:    string(ctx.QueryArgs().Peek("station")),
		Status:     string(ctx.QueryArgs().Peek("status")),
		AssignerID: string(ctx.QueryArgs().Peek("assigner_id")),
		AssigneeID: string(ctx.QueryArgs().Peek("assignee_id")),
		Limit:      parseInt(string(ctx.QueryArgs().Peek("limit")), 50),
		Offset:     parseInt(string(ctx.QueryArgs().Peek("offset")), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	if h.actorID(ctx) == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	actorID := h.actorID(ctx)
	if actorID == "" {
		return
	}

	var req transport.TaskCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.badRequest(ctx, "invalid payload")
		return
	}

	dueAt, err := parseTime(req.DueAt)
	if err != nil {
		h.badRequest(ctx, "due_at must be RFC3339")
		return
	}

	input := taskUC.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Station:     domain.Station(req.Station),
		DueAt:       dueAt,
		BasePoints:  req.BasePoints,
		ProofType:   domain.ProofType(req.ProofType),
		Repeat:      req.Repeat,
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateTask(stdCtx, input, actorID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Apply a lifecycle transition
// @Tags tasks
// @Router /api/v1/tasks/{id}/transitions [post]
func (h *TaskHandler) Transition(ctx *fasthttp.RequestCtx) {
	actorID := h.actorID(ctx)
	if actorID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.TransitionRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Intent == "" {
		h.badRequest(ctx, "invalid payload")
		return
	}

	payload := taskUC.Payload{
		Multiplier: req.Multiplier,
		Adjustment: req.Adjustment,
		Reason:     req.Reason,
		Proof:      req.Proof,
	}
	if req.NewDueAt != "" {
		newDueAt, err := parseTime(req.NewDueAt)
		if err != nil {
			h.badRequest(ctx, "new_due_at must be RFC3339")
			return
		}
		payload.NewDueAt = newDueAt
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Transition(stdCtx, id, taskUC.Intent(req.Intent), payload, actorID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Edit task
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	actorID := h.actorID(ctx)
	if actorID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.TaskUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.badRequest(ctx, "invalid payload")
		return
	}

	input := taskUC.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Repeat:      req.Repeat,
	}
	if req.Station != nil {
		station := domain.Station(*req.Station)
		input.Station = &station
	}
	if req.ProofType != nil {
		proofType := domain.ProofType(*req.ProofType)
		input.ProofType = &proofType
	}
	if req.DueAt != nil {
		dueAt, err := parseTime(*req.DueAt)
		if err != nil {
			h.badRequest(ctx, "due_at must be RFC3339")
			return
		}
		input.DueAt = &dueAt
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.UpdateTask(stdCtx, id, input, actorID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	actorID := h.actorID(ctx)
	if actorID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, id, actorID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

func (h *TaskHandler) taskID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.badRequest(ctx, "missing task id")
		return "", false
	}
	return id, true
}

func (h baseHandler) badRequest(ctx *fasthttp.RequestCtx, message string) {
	h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), message, nil))
}

func (h baseHandler) actorID(ctx *fasthttp.RequestCtx) string {
	actorID := string(ctx.Request.Header.Peek("X-Actor-ID"))
	if actorID == "" {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), "missing actor id", nil))
	}
	return actorID
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
