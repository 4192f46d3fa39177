package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	reconcileapp "github.com/erp/ledgersync/internal/application/reconcile"
	"github.com/erp/ledgersync/internal/interfaces/http/router"
)

// Version is stamped at build time with -ldflags
var Version = "dev"

// RunStatusProvider reports runner activity; *reconcileapp.Runner implements it
type RunStatusProvider interface {
	Status() reconcileapp.RunnerStatus
}

// SystemSettings describes the deployment shown by the info endpoint
type SystemSettings struct {
	LedgerDriver     string
	SchedulerEnabled bool
}

// SystemHandler serves service metadata and runner state
type SystemHandler struct {
	BaseHandler
	runs      RunStatusProvider
	settings  SystemSettings
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(runs RunStatusProvider, settings SystemSettings) *SystemHandler {
	return &SystemHandler{
		runs:      runs,
		settings:  settings,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string             `json:"name" example:"ledgersync"`
	Version   string             `json:"version" example:"1.0.0"`
	GoVersion string             `json:"go_version" example:"go1.25.5"`
	Uptime    string             `json:"uptime" example:"1h30m45s"`
	Ledger    string             `json:"ledger" example:"postgres"`
	Scheduler bool               `json:"scheduler" example:"true"`
	Running   bool               `json:"running" example:"false"`
	LastRun   *RunReportResponse `json:"last_run,omitempty"`
}

// GetSystemInfo godoc
// @ID           getSystemInfo
// @Summary      Get system information
// @Description  Returns the service version, the ledger backend and the
// @Description  outcome of the last multi-kind run
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=SystemInfoResponse}
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	status := h.runs.Status()
	resp := SystemInfoResponse{
		Name:      "ledgersync",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Ledger:    h.settings.LedgerDriver,
		Scheduler: h.settings.SchedulerEnabled,
		Running:   status.Running,
	}
	if status.LastRun != nil {
		last := toRunReportResponse(status.LastRun)
		resp.LastRun = &last
	}
	h.Success(c, resp)
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=PingResponse}
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RouteGroup returns the system routes
func (h *SystemHandler) RouteGroup() *router.DomainGroup {
	group := router.NewDomainGroup("system", "/system")
	group.GET("/info", h.GetSystemInfo)
	group.GET("/ping", h.Ping)
	return group
}
