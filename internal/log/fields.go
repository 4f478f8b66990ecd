package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldUsername    = "username"
	FieldDay         = "day"
	FieldRate        = "rate"
	FieldState       = "state"
	FieldGeneration  = "generation"
	FieldRecordID    = "record_id"
	FieldRecordType  = "record_type"
	FieldAmount      = "amount"
	FieldCurrency    = "currency"
	FieldStorageKey  = "storage_key"
	FieldBackend     = "backend"
	FieldEventType   = "event_type"
	FieldSpreadsheet = "spreadsheet_id"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentAPI      = "api"
	ComponentSession  = "session"
	ComponentRate     = "exchange_rate"
	ComponentRecords  = "records"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentSheets   = "sheets"
	ComponentCache    = "cache"
	ComponentWatcher  = "watcher"
	ComponentBackend  = "backend"
	ComponentCLI      = "cli"
)

// Operations defines standard operation names
const (
	OpLogin    = "login"
	OpLogout   = "logout"
	OpRestore  = "restore"
	OpCheck    = "check"
	OpSubmit   = "submit"
	OpReset    = "reset"
	OpCreate   = "create"
	OpList     = "list"
	OpResume   = "resume"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpExport   = "export"
	OpPersist  = "persist"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes mirror the user-facing error taxonomy
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeStorage       = "storage_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeServer        = "server_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(kind string) LogFields {
	f[FieldErrorType] = kind
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRate adds exchange-rate fields
func (f LogFields) WithRate(rate string, day string) LogFields {
	f[FieldRate] = rate
	f[FieldDay] = day
	return f
}

// WithHTTPRequest adds outbound request fields
func (f LogFields) WithHTTPRequest(method, path string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
