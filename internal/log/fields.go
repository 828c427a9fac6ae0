package log

import "homeledger/internal/core"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldDuration    = "duration_ms"
	FieldRecordID    = "record_id"
	FieldAccountID   = "account_id"
	FieldCategoryID  = "category_id"
	FieldMemberID    = "member_id"
	FieldKind        = "kind"
	FieldDate        = "date"
	FieldAmountCents = "amount_cents"
	FieldDeltaCents  = "delta_cents"
	FieldStage       = "stage"
	FieldPolicy      = "policy"
	FieldEventType   = "event_type"
	FieldName        = "name"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentStorage   = "storage"
	ComponentRecord    = "record"
	ComponentBalance   = "balance"
	ComponentCategory  = "category"
	ComponentSettings  = "settings"
	ComponentReconcile = "reconcile"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpRename    = "rename"
	OpDelete    = "delete"
	OpList      = "list"
	OpReconcile = "reconcile"
	OpRepair    = "repair"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRecord adds the identifying fields of a record.
func (f LogFields) WithRecord(r core.Record) LogFields {
	if r.ID != 0 {
		f[FieldRecordID] = r.ID
	}
	f[FieldDate] = r.Date.String()
	f[FieldKind] = string(r.Kind)
	f[FieldAccountID] = r.AccountID
	f[FieldCategoryID] = r.CategoryID
	f[FieldAmountCents] = r.Amount.Cents
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
