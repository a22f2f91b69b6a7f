// Package api holds the huma configuration shared by the server and handler tests.
package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // registers application/cbor
)

const (
	contentTypeJSON = "application/json"
	contentTypeCBOR = "application/cbor"
)

// NewConfig returns a huma configuration serving JSON and CBOR.
// Response bodies are sent exactly as the handler returns them: the default
// create hook that injects a "$schema" field and a describedBy Link header is
// removed.
func NewConfig(title, version, docsPath string) huma.Config {
	cfg := huma.DefaultConfig(title, version)
	cfg.CreateHooks = nil
	cfg.DocsPath = docsPath
	return cfg
}

// DescribeCBOR documents application/cbor next to every application/json
// request and response body in the OpenAPI document.
func DescribeCBOR(oapi *huma.OpenAPI) {
	oapi.OnAddOperation = append(oapi.OnAddOperation, func(_ *huma.OpenAPI, op *huma.Operation) {
		if op.RequestBody != nil && op.RequestBody.Content != nil {
			if jsonContent, ok := op.RequestBody.Content[contentTypeJSON]; ok {
				op.RequestBody.Content[contentTypeCBOR] = jsonContent
			}
		}
		for _, resp := range op.Responses {
			if resp.Content == nil {
				continue
			}
			if jsonContent, ok := resp.Content[contentTypeJSON]; ok {
				resp.Content[contentTypeCBOR] = jsonContent
			}
		}
	})
}

// RequireQueryParam marks a query parameter of a registered operation as
// required in the OpenAPI document. Used when presence is enforced by a
// resolver instead of huma's required tag, which also rejects empty values.
func RequireQueryParam(oapi *huma.OpenAPI, method, path, name string) {
	item := oapi.Paths[path]
	if item == nil {
		return
	}
	var op *huma.Operation
	switch method {
	case http.MethodGet:
		op = item.Get
	case http.MethodPost:
		op = item.Post
	case http.MethodPut:
		op = item.Put
	case http.MethodPatch:
		op = item.Patch
	case http.MethodDelete:
		op = item.Delete
	}
	if op == nil {
		return
	}
	for _, p := range op.Parameters {
		if p.In == "query" && p.Name == name {
			p.Required = true
		}
	}
}
