package content

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/janisto/content-api/internal/api"
	applog "github.com/janisto/content-api/internal/platform/logging"
)

// Output wraps the greeting payload.
type Output struct {
	Body Data
}

// Register wires the root and content routes into the provided API.
func Register(humaAPI huma.API) {
	huma.Register(humaAPI, huma.Operation{
		OperationID:   "read-root",
		Method:        http.MethodGet,
		Path:          "/",
		Summary:       "Read the root greeting",
		Tags:          []string{"content"},
		DefaultStatus: http.StatusOK,
	}, rootHandler)

	huma.Register(humaAPI, huma.Operation{
		OperationID:   "get-content",
		Method:        http.MethodPost,
		Path:          "/content",
		Summary:       "Get content for the given interests",
		Description:   "Accepts any interests value and returns the same greeting.",
		Tags:          []string{"content"},
		DefaultStatus: http.StatusOK,
	}, contentHandler)
	api.RequireQueryParam(humaAPI.OpenAPI(), http.MethodPost, "/content", interestsParam)
}

func rootHandler(ctx context.Context, _ *struct{}) (*Output, error) {
	applog.LogInfo(ctx, "root requested", zap.String("path", "/"))
	return &Output{Body: Data{Message: Message}}, nil
}

func contentHandler(ctx context.Context, input *ContentInput) (*Output, error) {
	applog.LogInfo(ctx, "content requested",
		zap.String("path", "/content"),
		zap.Int("interestsLength", len(input.Interests)),
	)
	return &Output{Body: Data{Message: Message}}, nil
}
