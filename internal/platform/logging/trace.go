package logging

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const traceparentHeader = "traceparent"

// W3C Trace Context format: {version}-{trace-id}-{parent-id}-{trace-flags}
// Example: 00-ab42124a3c573678d4d8b21ba52df3bf-d21f7bc17caa5aba-01
var traceparentRe = regexp.MustCompile(`^([0-9a-fA-F]{2})-([0-9a-fA-F]{32})-([0-9a-fA-F]{16})-([0-9a-fA-F]{2})$`)

var (
	projectIDOnce   sync.Once
	cachedProjectID string
)

// traceInfo is the subset of a trace context that Cloud Logging correlates on.
type traceInfo struct {
	traceID string
	spanID  string
	sampled bool
}

func (t traceInfo) valid() bool {
	return t.traceID != "" && t.spanID != ""
}

func (t traceInfo) resource(projectID string) string {
	return fmt.Sprintf("projects/%s/traces/%s", projectID, t.traceID)
}

// traceFromRequest prefers the active OpenTelemetry span and falls back to the raw traceparent header.
func traceFromRequest(r *http.Request) traceInfo {
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		return traceInfo{
			traceID: sc.TraceID().String(),
			spanID:  sc.SpanID().String(),
			sampled: sc.IsSampled(),
		}
	}
	return parseTraceparent(r.Header.Get(traceparentHeader))
}

func parseTraceparent(header string) traceInfo {
	matches := traceparentRe.FindStringSubmatch(header)
	if len(matches) != 5 {
		return traceInfo{}
	}
	return traceInfo{
		traceID: matches[2],
		spanID:  matches[3],
		sampled: matches[4] == "01",
	}
}

func traceFields(info traceInfo, projectID string) []zap.Field {
	if projectID == "" || !info.valid() {
		return nil
	}
	return []zap.Field{
		zap.String("logging.googleapis.com/trace", info.resource(projectID)),
		zap.String("logging.googleapis.com/spanId", info.spanID),
		zap.Bool("logging.googleapis.com/trace_sampled", info.sampled),
	}
}

func loggerWithTrace(base *zap.Logger, info traceInfo, projectID, requestID string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := traceFields(info, projectID)
	if requestID != "" {
		fields = append(fields, zap.String("requestId", requestID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveProjectID() string {
	projectIDOnce.Do(func() {
		cachedProjectID = firstNonEmpty(
			os.Getenv("GOOGLE_CLOUD_PROJECT"),
			os.Getenv("GCP_PROJECT"),
			os.Getenv("GCLOUD_PROJECT"),
			os.Getenv("PROJECT_ID"),
		)
	})
	return cachedProjectID
}
