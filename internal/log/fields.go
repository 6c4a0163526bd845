package log

// Common field names for structured logging.
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldOwner       = "owner"
	FieldCollection  = "collection"
	FieldEntryID     = "entry_id"
	FieldJobID       = "job_id"
	FieldReceivable  = "receivable_id"
	FieldAmountCents = "amount_cents"
	FieldEntryKind   = "kind"
	FieldEntryScope  = "scope"
	FieldDate        = "date"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names.
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentStorage     = "storage"
	ComponentMirror      = "mirror"
	ComponentLedger      = "ledger"
	ComponentJobs        = "jobs"
	ComponentReceivables = "receivables"
	ComponentCash        = "cash"
	ComponentPrefs       = "prefs"
	ComponentAMQP        = "amqp"
	ComponentBus         = "bus"
	ComponentWorker      = "worker"
)

// Operations defines standard operation names.
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpLoad     = "load"
	OpNotify   = "notify"
	OpFinalize = "finalize"
	OpPayment  = "payment"
	OpPurge    = "purge"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
