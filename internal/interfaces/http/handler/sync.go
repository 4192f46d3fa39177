package handler

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	reconcileapp "github.com/erp/ledgersync/internal/application/reconcile"
	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/domain/shared"
	"github.com/erp/ledgersync/internal/infrastructure/logger"
	"github.com/erp/ledgersync/internal/infrastructure/scheduler"
	"github.com/erp/ledgersync/internal/interfaces/http/middleware"
	"github.com/erp/ledgersync/internal/interfaces/http/router"
)

// SyncService runs synchronization; *reconcileapp.Runner implements it
type SyncService interface {
	Kinds() []reconcile.Kind
	TestConnection(ctx context.Context) error
	Sync(ctx context.Context, kind reconcile.Kind) (*reconcile.Result, error)
	SyncAll(ctx context.Context, kinds ...reconcile.Kind) (*reconcileapp.RunReport, error)
}

// JobScheduler queues background runs; *scheduler.SyncScheduler implements it
type JobScheduler interface {
	Schedule(trigger scheduler.SyncTrigger, kinds ...reconcile.Kind) (scheduler.SyncJob, error)
	GetJobHistory(limit int) []*scheduler.SyncJob
}

const defaultJobHistoryLimit = 20

// SyncHandler handles the sync trigger endpoints
type SyncHandler struct {
	BaseHandler
	service SyncService
	jobs    JobScheduler
	now     func() time.Time
}

// NewSyncHandler creates a new SyncHandler. jobs may be nil when the
// scheduler is disabled.
func NewSyncHandler(service SyncService, jobs JobScheduler) *SyncHandler {
	return &SyncHandler{
		service: service,
		jobs:    jobs,
		now:     time.Now,
	}
}

// ListKinds godoc
// @ID           listSyncKinds
// @Summary      List sync kinds
// @Description  Returns every kind a run can target, in dependency order
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=KindsResponse}
// @Router       /sync/kinds [get]
func (h *SyncHandler) ListKinds(c *gin.Context) {
	kinds := h.service.Kinds()
	resp := KindsResponse{Kinds: make([]string, len(kinds))}
	for i, k := range kinds {
		resp.Kinds[i] = string(k)
	}
	h.Success(c, resp)
}

// SyncKind godoc
// @ID           syncKind
// @Summary      Synchronize one kind
// @Description  Runs one orchestrator synchronously and returns its counters
// @Tags         sync
// @Produce      json
// @Param        kind path     string true "Kind" Enums(accounts,contacts,products,sales_invoices,purchase_bills,salaries,taxes,payments)
// @Success      200  {object} dto.Response{data=SyncResultResponse}
// @Failure      400  {object} dto.Response
// @Failure      409  {object} dto.Response
// @Failure      502  {object} dto.Response
// @Failure      503  {object} dto.Response
// @Router       /sync/{kind} [post]
func (h *SyncHandler) SyncKind(c *gin.Context) {
	kind, err := reconcile.ParseKind(c.Param("kind"))
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.service.Sync(c.Request.Context(), kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Success(c, toSyncResultResponse(result))
}

// SyncAll godoc
// @ID           syncAll
// @Summary      Synchronize several kinds
// @Description  Runs the requested kinds, or all of them, in dependency order.
// @Description  Non-fatal failures of one kind are reported per kind.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body     SyncRequest false "Kinds to run"
// @Success      200     {object} dto.Response{data=RunReportResponse}
// @Failure      400     {object} dto.Response
// @Failure      409     {object} dto.Response
// @Failure      502     {object} dto.Response
// @Router       /sync [post]
func (h *SyncHandler) SyncAll(c *gin.Context) {
	kinds, ok := h.bindKinds(c)
	if !ok {
		return
	}

	report, err := h.service.SyncAll(c.Request.Context(), kinds...)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Success(c, toRunReportResponse(report))
}

// TestConnection godoc
// @ID           testConnection
// @Summary      Check upstream credentials
// @Description  Performs a token exchange without fetching any data
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=ConnectionResponse}
// @Failure      502 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Router       /connection/test [post]
func (h *SyncHandler) TestConnection(c *gin.Context) {
	if err := h.service.TestConnection(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.Success(c, ConnectionResponse{
		Connected: true,
		CheckedAt: h.now().UTC().Format(time.RFC3339),
	})
}

// EnqueueJob godoc
// @ID           enqueueSyncJob
// @Summary      Queue a background run
// @Description  Queues a run on the scheduler and returns immediately
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body     SyncRequest false "Kinds to run"
// @Success      202     {object} dto.Response{data=scheduler.SyncJob}
// @Failure      409     {object} dto.Response
// @Router       /sync/jobs [post]
func (h *SyncHandler) EnqueueJob(c *gin.Context) {
	kinds, ok := h.bindKinds(c)
	if !ok {
		return
	}

	job, err := h.jobs.Schedule(scheduler.SyncTriggerManual, kinds...)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Accepted(c, job)
}

// ListJobs godoc
// @ID           listSyncJobs
// @Summary      List finished background runs
// @Tags         sync
// @Produce      json
// @Param        limit query    int false "Max jobs" default(20)
// @Success      200   {object} dto.Response{data=[]scheduler.SyncJob}
// @Router       /sync/jobs [get]
func (h *SyncHandler) ListJobs(c *gin.Context) {
	limit := defaultJobHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	h.Success(c, h.jobs.GetJobHistory(limit))
}

// bindKinds reads an optional SyncRequest body and parses its kinds
func (h *SyncHandler) bindKinds(c *gin.Context) ([]reconcile.Kind, bool) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleBindError(c, err)
		return nil, false
	}

	kinds := make([]reconcile.Kind, 0, len(req.Kinds))
	for _, name := range req.Kinds {
		kind, err := reconcile.ParseKind(name)
		if err != nil {
			h.fail(c, err)
			return nil, false
		}
		kinds = append(kinds, kind)
	}
	return kinds, true
}

// fail logs err and answers with its mapped status
func (h *SyncHandler) fail(c *gin.Context, err error) {
	mapped := syncError(err)
	log := logger.GetGinLogger(c)
	var domainErr *shared.DomainError
	if errors.As(mapped, &domainErr) {
		log.Warn("sync request rejected", zap.String("code", domainErr.Code), zap.Error(err))
	} else {
		log.Error("sync request failed", zap.Error(err))
	}
	h.HandleError(c, mapped)
}

// syncError maps engine and scheduler errors onto domain errors
func syncError(err error) error {
	switch {
	case errors.Is(err, reconcile.ErrUnknownKind):
		return shared.ErrUnknownKind.WithMessage(err.Error())
	case errors.Is(err, reconcileapp.ErrRunInProgress):
		return shared.ErrSyncInProgress
	case errors.Is(err, reconcile.ErrConfiguration):
		return shared.ErrConfiguration.WithMessage(err.Error())
	case errors.Is(err, reconcile.ErrAuthentication):
		return shared.ErrUpstreamAuth
	case errors.Is(err, reconcile.ErrRateLimited):
		return shared.ErrRateLimited
	case errors.Is(err, reconcile.ErrTransport):
		return shared.ErrUpstreamUnavailable
	case errors.Is(err, scheduler.ErrJobQueueFull):
		return shared.ErrSyncInProgress.WithMessage("Sync queue is full")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		return shared.ErrInvalidState.WithMessage("Scheduler is not running")
	}
	return err
}

// RouteGroups returns the sync and connection route groups. The jobs
// routes exist only when a scheduler is attached.
func (h *SyncHandler) RouteGroups() []*router.DomainGroup {
	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.GET("/kinds", h.ListKinds)
	syncRoutes.POST("", h.SyncAll)
	if h.jobs != nil {
		syncRoutes.GET("/jobs", h.ListJobs)
		syncRoutes.POST("/jobs", h.EnqueueJob)
	}
	syncRoutes.POST("/:kind", h.SyncKind)

	connectionRoutes := router.NewDomainGroup("connection", "/connection")
	connectionRoutes.POST("/test", h.TestConnection)

	return []*router.DomainGroup{syncRoutes, connectionRoutes}
}
