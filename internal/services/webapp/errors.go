package webapp

import (
	"errors"
	"net/http"

	"progress-map/internal/apperrors"
	"progress-map/internal/services/reportpdf"
)

// statusFor 把领域错误映射为 HTTP 状态码。
func statusFor(err error) int {
	var (
		unknown   apperrors.UnknownRegionError
		oor       apperrors.OutOfRangeError
		invalid   apperrors.InvalidReportDataError
		malformed apperrors.MalformedInputError
		persist   apperrors.PersistenceError
		notFound  reportpdf.ReportNotFoundError
	)
	switch {
	case errors.As(err, &persist):
		return http.StatusServiceUnavailable
	case errors.As(err, &invalid), errors.As(err, &malformed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &unknown), errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &oor):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}
