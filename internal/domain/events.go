package domain

// EventReportStored is published once a stopped monitor's report replaces the
// stored report for its process id.
type EventReportStored struct {
	ProcessID int64   `json:"process_id"`
	ReportID  string  `json:"report_id"`
	Report    *Report `json:"report"`
}

type EventMonitorStarted struct {
	ProcessID    int64  `json:"process_id"`
	PeriodMillis int    `json:"period_millis"`
	Mode         string `json:"mode"`
}

type EventRegistryPurged struct {
	Stopped int `json:"stopped"`
}

type WsServerEvent struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

const (
	WsChannelReports    = "reports"
	WsEventReportStored = "report_stored"
	WsEventPurged       = "purged"
)
