package log

// Field names shared across the codebase so log lines stay grepable.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldPeriod      = "period"
	FieldDraft       = "draft"
	FieldEntryID     = "entry_id"
	FieldCategory    = "category"
	FieldConcept     = "concept"
	FieldAmountCents = "amount_cents"
	FieldRule        = "rule"
	FieldOrigin      = "origin"
)

// Component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentClosing = "closing"
	ComponentKPI     = "kpi"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentInsight = "insight"
	ComponentMirror  = "mirror"
)
