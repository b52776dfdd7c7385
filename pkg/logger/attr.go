package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Operation records the operation display name under the key "operation".
func Operation(name string) slog.Attr {
	return slog.String("operation", name)
}

// OperationID records the operation identifier under the key "operation_id".
func OperationID(id string) slog.Attr {
	return slog.String("operation_id", id)
}

// Priority records the scheduling priority under the key "priority".
func Priority(p any) slog.Attr {
	return slog.Any("priority", p)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// MaxRetries records the retry budget under the key "max_retries".
func MaxRetries(count int) slog.Attr {
	return slog.Int("max_retries", count)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// RecordKey records the logical record key under the key "record_key".
func RecordKey(key string) slog.Attr {
	return slog.String("record_key", key)
}

// Transaction records the transaction step name under the key "transaction_step".
func Transaction(name string) slog.Attr {
	return slog.String("transaction_step", name)
}
