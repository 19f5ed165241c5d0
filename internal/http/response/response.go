package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gitscout/gitscout-backend/internal/platform/apierr"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

// RespondServiceError maps sentinel errors from the service layer to
// HTTP statuses and stable codes.
func RespondServiceError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}

	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, pkgerrors.ErrStaleReference):
		RespondError(c, http.StatusConflict, "stale_reference", err)
	case errors.Is(err, pkgerrors.ErrClassifierUnavailable):
		RespondError(c, http.StatusServiceUnavailable, "classifier_unavailable", err)
	case errors.Is(err, pkgerrors.ErrStoreUnavailable):
		RespondError(c, http.StatusServiceUnavailable, "store_unavailable", err)
	case errors.Is(err, pkgerrors.ErrCompile):
		RespondError(c, http.StatusUnprocessableEntity, "compile_error", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
