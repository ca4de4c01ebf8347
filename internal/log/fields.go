package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldUserID        = "user_id"
	FieldTransactionID = "transaction_id"
	FieldSessionID     = "session_id"
	FieldState         = "state"
	FieldPeriod        = "period"
	FieldCommand       = "command"
	FieldIsIncome      = "is_income"
	FieldCategory      = "category"
	FieldSheetRef      = "sheet_ref"
	FieldOperation     = "operation"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentBot          = "bot"
	ComponentConversation = "conversation"
	ComponentLedger       = "ledger"
	ComponentReport       = "report"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
	ComponentCache        = "cache"
	ComponentRateLimit    = "rate_limit"
	ComponentHealth       = "health"
)

// Operations defines standard operation names
const (
	OpRecord   = "record"
	OpList     = "list"
	OpStats    = "stats"
	OpExport   = "export"
	OpSync     = "sync"
	OpRender   = "render"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithUser(userID int64) LogFields {
	f[FieldUserID] = userID
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message, skipping nil errors.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
