package gateway

import "log/slog"

// LogCall emits a debug-level log line for a gateway round trip with
// request/response bodies redacted, shared by the forge and sheet
// clients' call sites.
func LogCall(logger *slog.Logger, gatewayName, method string, requestBody, responseBody string, err error) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("gateway", gatewayName),
		slog.String("method", method),
		slog.String("request", Redact(requestBody)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		logger.Debug("gateway call failed", attrs...)
		return
	}
	attrs = append(attrs, slog.String("response", Redact(responseBody)))
	logger.Debug("gateway call", attrs...)
}
