package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/content-api/internal/http/health"
	"github.com/janisto/content-api/internal/http/v1/content"
)

// Register wires all HTTP routes into the provided API router.
func Register(api huma.API, version string) {
	health.Register(api, version)
	content.Register(api)
}
