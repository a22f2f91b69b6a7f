package respond

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	applog "github.com/janisto/content-api/internal/platform/logging"
	appmiddleware "github.com/janisto/content-api/internal/platform/middleware"
)

const (
	contentTypeProblemJSON = "application/problem+json"
	contentTypeProblemCBOR = "application/problem+cbor"

	msgNotFound          = "resource not found"
	msgInternalServerErr = "internal server error"
)

var installOnce sync.Once

// Install makes every error huma creates with a request context go through
// the request-scoped logger before it is rendered.
func Install() {
	installOnce.Do(func() {
		newError := huma.NewError
		huma.NewErrorWithContext = func(hctx huma.Context, status int, msg string, errs ...error) huma.StatusError {
			ctx := context.Background()
			if hctx != nil {
				ctx = hctx.Context()
			}
			logStatus(ctx, status, msg, errs)
			return newError(status, msg, errs...)
		}
	})
}

func logStatus(ctx context.Context, status int, msg string, errs []error) {
	fields := []zap.Field{zap.Int("status", status)}
	details := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}
	if len(details) > 0 {
		fields = append(fields, zap.Strings("details", details))
	}

	switch {
	case status >= http.StatusInternalServerError:
		applog.LogError(ctx, msg, errors.Join(errs...), fields...)
	case status >= http.StatusBadRequest:
		applog.LogWarn(ctx, msg, fields...)
	}
}

// NotFoundHandler renders a 404 problem for unmatched routes.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, msgNotFound)
	}
}

// MethodNotAllowedHandler renders a 405 problem and lists the methods the
// matched path does support in the Allow header.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		writeProblem(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	}
}

// Recoverer turns a panic into a 500 problem. http.ErrAbortHandler is
// re-raised so net/http can abort the connection, and nothing is written when
// the handler already sent its status line.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				applog.LogError(r.Context(), "panic recovered", err, zap.ByteString("stack", debug.Stack()))

				if rw.wroteHeader {
					return
				}
				writeProblem(w, r, http.StatusInternalServerError, msgInternalServerErr)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// responseWriter remembers whether a status line has gone out.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := &huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}

	h := w.Header()
	appmiddleware.AddVary(h, "Origin", "Accept")

	var (
		body []byte
		err  error
	)
	if selectFormat(r.Header.Get("Accept")) {
		h.Set("Content-Type", contentTypeProblemCBOR)
		body, err = cbor.Marshal(problem)
	} else {
		h.Set("Content-Type", contentTypeProblemJSON)
		body, err = marshalJSON(problem)
	}
	if err != nil {
		applog.LogError(r.Context(), "failed to encode problem", err, zap.Int("status", status))
		h.Del("Content-Type")
		w.WriteHeader(status)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		applog.LogWarn(r.Context(), "failed to write problem", zap.Error(err))
	}
}

func marshalJSON(v any) ([]byte, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// mediaRange is one entry of an Accept header.
type mediaRange struct {
	typ     string
	subtype string
	q       float64
}

func parseAccept(header string) []mediaRange {
	var ranges []mediaRange
	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		params := strings.Split(part, ";")
		media := strings.ToLower(strings.TrimSpace(params[0]))
		if media == "" {
			continue
		}

		mr := mediaRange{q: 1.0}
		if typ, subtype, ok := strings.Cut(media, "/"); ok {
			mr.typ, mr.subtype = strings.TrimSpace(typ), strings.TrimSpace(subtype)
		} else {
			mr.typ, mr.subtype = media, "*"
		}

		for _, p := range params[1:] {
			key, value, ok := strings.Cut(p, "=")
			if !ok || strings.ToLower(strings.TrimSpace(key)) != "q" {
				continue
			}
			q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || q < 0 || q > 1 {
				q = 1.0
			}
			mr.q = q
		}
		ranges = append(ranges, mr)
	}
	return ranges
}

// specificity of a range against a concrete media type, or -1 when it does
// not match. Problem types rank above their base type so that
// "application/problem+cbor" beats "application/json" at equal quality.
func specificity(mr mediaRange, typ, subtype string, problem bool) int {
	switch {
	case mr.typ == "*" && mr.subtype == "*":
		return 0
	case mr.typ != typ:
		return -1
	case mr.subtype == subtype:
		if problem {
			return 4
		}
		return 3
	case strings.HasPrefix(mr.subtype, "*+") && strings.HasSuffix(subtype, mr.subtype[1:]):
		return 2
	case mr.subtype == "*":
		return 1
	default:
		return -1
	}
}

// preference returns the quality and specificity the Accept ranges assign to
// a concrete media type. The most specific matching range decides the quality.
func preference(ranges []mediaRange, subtype string, problem bool) (float64, int) {
	q, spec := 0.0, -1
	for _, mr := range ranges {
		if s := specificity(mr, "application", subtype, problem); s > spec {
			q, spec = mr.q, s
		}
	}
	return q, spec
}

func formatPreference(ranges []mediaRange, base, problem string) (float64, int) {
	bq, bs := preference(ranges, base, false)
	pq, ps := preference(ranges, problem, true)
	if pq > bq || (pq == bq && ps > bs) {
		return pq, ps
	}
	return bq, bs
}

// selectFormat reports whether CBOR should be used for a problem body.
// JSON wins every tie and is the fallback when nothing acceptable matches.
func selectFormat(accept string) bool {
	ranges := parseAccept(accept)
	if len(ranges) == 0 {
		return false
	}
	cq, cs := formatPreference(ranges, "cbor", "problem+cbor")
	if cq <= 0 {
		return false
	}
	jq, js := formatPreference(ranges, "json", "problem+json")
	if jq <= 0 {
		return true
	}
	return cq > jq || (cq == jq && cs > js)
}

// allowedMethods probes chi's routing tree for the methods registered on the
// request path.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}

	routePath := rctx.RoutePath
	if routePath == "" {
		routePath = r.URL.RawPath
		if routePath == "" {
			routePath = r.URL.Path
		}
		if routePath == "" {
			routePath = "/"
		}
	}

	methods := []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowed := make([]string, 0, len(methods))
	for _, method := range methods {
		if rctx.Routes.Match(chi.NewRouteContext(), method, routePath) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}
