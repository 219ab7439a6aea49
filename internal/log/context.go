package log

import "context"

// LogError logs an error with structured context
func LogError(ctx context.Context, logger *Logger, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
