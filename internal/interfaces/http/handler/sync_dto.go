package handler

import (
	"time"

	reconcileapp "github.com/erp/ledgersync/internal/application/reconcile"
	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// SyncRequest selects the kinds of a multi-kind run; empty means all
type SyncRequest struct {
	Kinds []string `json:"kinds" binding:"omitempty,max=9,dive,required,max=32" example:"contacts"`
}

// SyncResultResponse represents one kind's counters
type SyncResultResponse struct {
	Kind        string `json:"kind" example:"sales_invoices"`
	Created     int    `json:"created" example:"12"`
	Updated     int    `json:"updated" example:"3"`
	Processed   int    `json:"processed" example:"16"`
	Skipped     int    `json:"skipped" example:"1"`
	Truncated   bool   `json:"truncated" example:"false"`
	RateLimited bool   `json:"rate_limited,omitempty" example:"false"`
	DurationMS  int64  `json:"duration_ms" example:"5230"`
}

// RunReportResponse represents a multi-kind run
type RunReportResponse struct {
	RunID      string               `json:"run_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	StartedAt  string               `json:"started_at" example:"2026-03-15T10:30:00Z"`
	FinishedAt string               `json:"finished_at" example:"2026-03-15T10:31:12Z"`
	Truncated  bool                 `json:"truncated" example:"false"`
	Results    []SyncResultResponse `json:"results"`
	Errors     map[string]string    `json:"errors,omitempty"`
}

// KindsResponse lists the kinds a run can target, in run order
type KindsResponse struct {
	Kinds []string `json:"kinds" example:"accounts,contacts"`
}

// ConnectionResponse reports a successful credential check
type ConnectionResponse struct {
	Connected bool   `json:"connected" example:"true"`
	CheckedAt string `json:"checked_at" example:"2026-03-15T10:30:00Z"`
}

func toSyncResultResponse(r *reconcile.Result) SyncResultResponse {
	return SyncResultResponse{
		Kind:        string(r.Kind),
		Created:     r.Created,
		Updated:     r.Updated,
		Processed:   r.Processed,
		Skipped:     r.Skipped,
		Truncated:   r.Truncated,
		RateLimited: r.RateLimited,
		DurationMS:  r.Duration.Milliseconds(),
	}
}

func toRunReportResponse(r *reconcileapp.RunReport) RunReportResponse {
	resp := RunReportResponse{
		RunID:     r.RunID,
		StartedAt: r.StartedAt.Format(time.RFC3339),
		Truncated: r.Truncated(),
		Results:   make([]SyncResultResponse, 0, len(r.Results)),
	}
	if !r.FinishedAt.IsZero() {
		resp.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}
	for _, res := range r.Results {
		resp.Results = append(resp.Results, toSyncResultResponse(res))
	}
	if len(r.Errors) > 0 {
		resp.Errors = make(map[string]string, len(r.Errors))
		for kind, msg := range r.Errors {
			resp.Errors[string(kind)] = msg
		}
	}
	return resp
}
