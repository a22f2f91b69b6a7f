package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// StatusHealthy is reported while the process is serving requests.
const StatusHealthy = "healthy"

// Response is the payload for the health endpoint.
type Response struct {
	Status  string `json:"status"  doc:"Service status"  example:"healthy"`
	Version string `json:"version" doc:"Build version"   example:"1.0.0"`
}

// Output wraps the health payload.
type Output struct {
	Body Response
}

// Register adds GET /health reporting the given build version.
func Register(api huma.API, version string) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Report service health",
		Tags:        []string{"health"},
	}, healthHandler(version))
}

func healthHandler(version string) func(context.Context, *struct{}) (*Output, error) {
	return func(context.Context, *struct{}) (*Output, error) {
		return &Output{Body: Response{Status: StatusHealthy, Version: version}}, nil
	}
}
