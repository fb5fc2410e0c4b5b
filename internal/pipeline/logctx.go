package pipeline

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"
)

type logRequestKey string

// Context keys tagging every log line with a request id and remote IP,
// mirroring the teacher's RequestKeyRequestID/RequestKeyRemoteIP in
// server/server.go.
const (
	RequestKeyRequestID logRequestKey = "request_id"
	RequestKeyRemoteIP  logRequestKey = "client_remote_addr"
)

func withRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, RequestKeyRequestID, uuid.NewString())
}

func withRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, RequestKeyRemoteIP, ip)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestContextHandler is a slog.Handler decorator that lifts the
// request id / remote IP context values onto every record, the exact
// shape of the teacher's cmd/dex/logger.go requestContextHandler.
type requestContextHandler struct {
	handler slog.Handler
}

func NewRequestContextHandler(handler slog.Handler) slog.Handler {
	return requestContextHandler{handler: handler}
}

func (h requestContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h requestContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if v, ok := ctx.Value(RequestKeyRemoteIP).(string); ok {
		record.AddAttrs(slog.String(string(RequestKeyRemoteIP), v))
	}
	if v, ok := ctx.Value(RequestKeyRequestID).(string); ok {
		record.AddAttrs(slog.String(string(RequestKeyRequestID), v))
	}
	return h.handler.Handle(ctx, record)
}

func (h requestContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestContextHandler{h.handler.WithAttrs(attrs)}
}

func (h requestContextHandler) WithGroup(name string) slog.Handler {
	return requestContextHandler{h.handler.WithGroup(name)}
}
