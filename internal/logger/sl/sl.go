package sl

import "log/slog"

// Err wraps an error as a slog attribute under the "error" key
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{Key: "error", Value: slog.StringValue("<nil>")}
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
