package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOwner       = "owner"
	FieldTxID        = "tx_id"
	FieldCategory    = "category"
	FieldDate        = "date"
	FieldAmount      = "amount"
	FieldCount       = "count"
	FieldMode        = "mode"
	FieldKey         = "key"
	FieldBackend     = "backend"
	FieldFilename    = "filename"
	FieldFlags       = "flags"
	FieldDurationMs  = "duration_ms"
	FieldBytes       = "bytes"
	FieldExchange    = "exchange"
	FieldRoutingKey  = "routing_key"
	FieldSpreadsheet = "spreadsheet_id"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentCLI     = "cli"
	ComponentLedger  = "ledger"
	ComponentSplit   = "split"
	ComponentDetect  = "detect"
	ComponentReport  = "report"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentExport  = "export"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
	ComponentSettle  = "settle"
)

// Operations defines standard operation names
const (
	OpAppend   = "append"
	OpSplit    = "split"
	OpList     = "list"
	OpLoad     = "load"
	OpFlush    = "flush"
	OpDetect   = "detect"
	OpExport   = "export"
	OpPublish  = "publish"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
	OpSettle   = "settle"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
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

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds transaction-related fields
func (f LogFields) WithTransaction(id, owner, date, category, amount string) LogFields {
	f[FieldTxID] = id
	f[FieldOwner] = owner
	f[FieldDate] = date
	f[FieldCategory] = category
	f[FieldAmount] = amount
	return f
}

// WithOwner adds the owner field
func (f LogFields) WithOwner(owner string) LogFields {
	f[FieldOwner] = owner
	return f
}

// WithCount adds a count field
func (f LogFields) WithCount(n int) LogFields {
	f[FieldCount] = n
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
