package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/pkg/httpcontext"
	taskUC "github.com/shiftline/backend/usecase/task"
)

type BudgetHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewBudgetHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *BudgetHandler {
	return &BudgetHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Remaining discretionary budget for the authenticated actor
// @Tags budget
// @Router /api/v1/budget [get]
func (h *BudgetHandler) GetRemaining(ctx *fasthttp.RequestCtx) {
	actorID := h.actorID(ctx)
	if actorID == "" {
		return
	}

	at := time.Now()
	if raw := string(ctx.QueryArgs().Peek("date")); raw != "" {
		parsed, err := time.Parse(domain.BudgetDateLayout, raw)
		if err != nil {
			h.badRequest(ctx, "date must be YYYY-MM-DD")
			return
		}
		at = parsed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	remaining, err := h.uc.RemainingBudget(stdCtx, actorID, at)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"actor_id":  actorID,
		"date":      domain.BudgetDay(at),
		"remaining": remaining,
	})
}
