package domain

import "context"

const (
	ModePeriodic = "periodic"
	ModeEndToEnd = "end_to_end"
)

const (
	TagProcessID   = "process_id"
	TagReportID    = "report_id"
	TagPeriod      = "period_millis"
	TagMode        = "mode"
	TagAccelerator = "accelerator"
)

type StartRequest struct {
	ProcessID    int64 `json:"process_id" validate:"required"`
	PeriodMillis *int  `json:"period_millis,omitempty" validate:"omitempty,gte=0"`
}

type StopRequest struct {
	ProcessID int64             `json:"process_id" validate:"required"`
	Tags      map[string]string `json:"tags,omitempty"`
}

type ReadRequest struct {
	ProcessID int64    `json:"process_id" validate:"required"`
	Signals   []string `json:"signals,omitempty"`
}

type DumpRequest struct {
	ProcessID  int64    `json:"process_id" validate:"required"`
	Signals    []string `json:"signals,omitempty"`
	OutputPath string   `json:"output_path,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message,omitempty"`
}

type ReadResponse struct {
	Report *Report `json:"report,omitempty"`
}

type DumpResponse struct {
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`
}

// ProfilerService is the RPC surface of the monitor registry.
type ProfilerService interface {
	Start(ctx context.Context, req StartRequest) (*MessageResponse, error)
	Stop(ctx context.Context, req StopRequest) (*MessageResponse, error)
	Read(ctx context.Context, req ReadRequest) (*ReadResponse, error)
	Dump(ctx context.Context, req DumpRequest) (*DumpResponse, error)
	Purge(ctx context.Context) error
}

// Accelerator is an external energy collaborator that runs alongside a
// monitor and contributes its own report at stop time.
type Accelerator interface {
	Start(ctx context.Context, processID int64, periodMillis int) error
	Stop(ctx context.Context, processID int64) error
	Read(ctx context.Context, processID int64) (*Report, error)
}
