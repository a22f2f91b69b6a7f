package content

import (
	"github.com/danielgtaylor/huma/v2"
)

const interestsParam = "interests"

// ContentInput carries the interests query parameter. The value is accepted
// as-is, including the empty string; only its absence is an error.
type ContentInput struct {
	Interests string `query:"interests" doc:"Free-form interests of the caller" example:"music"`
}

// Resolve rejects requests that omit the interests parameter. huma's
// required tag would also reject "?interests=", which is a valid request here.
func (i *ContentInput) Resolve(ctx huma.Context) []error {
	if u := ctx.URL(); u.Query().Has(interestsParam) {
		return nil
	}
	return []error{&huma.ErrorDetail{
		Location: "query." + interestsParam,
		Message:  "required query parameter is missing",
	}}
}

var _ huma.Resolver = (*ContentInput)(nil)
