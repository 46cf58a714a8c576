package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"campus-events/internal/apperr"
	"campus-events/internal/logger"
	"campus-events/internal/utils"
)

// statusFor maps error kinds to HTTP status codes. Invalid state is a client
// error because retrying the same request cannot succeed.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidState:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log *logger.Logger, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		log.Error("API", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
	}
	utils.WriteJSON(w, status, utils.ErrorResponse(apperr.Message(err), string(kind)))
}

func writeData(w http.ResponseWriter, status int, message string, data interface{}) {
	utils.WriteJSON(w, status, utils.SuccessResponse(message, data))
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Validation("invalid request body: %v", err)
}
