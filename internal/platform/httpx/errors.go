package httpx

import (
	"errors"
	"net/http"

	"github.com/sitestock/sitestock/internal/shared"
)

// Mapper translates a domain error into a problem. It reports false when it
// does not recognise err.
type Mapper func(err error) (ProblemDetail, bool)

// RespondError maps err to an RFC7807 response, consulting mappers before
// the shared validation and not-found errors.
func RespondError(w http.ResponseWriter, err error, mappers ...Mapper) {
	for _, m := range mappers {
		if p, ok := m(err); ok {
			WriteProblem(w, p)
			return
		}
	}
	switch {
	case errors.Is(err, ErrBadBody):
		Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
	case errors.Is(err, shared.ErrValidation):
		WriteProblem(w, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
			Extra:  map[string]any{"errors": shared.Fields(err)},
		})
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
