package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vendwatch/vendwatch/internal/export"
	geographydomain "github.com/vendwatch/vendwatch/internal/geography/domain"
	identitydomain "github.com/vendwatch/vendwatch/internal/identity/domain"
	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	machinedomain "github.com/vendwatch/vendwatch/internal/machine/domain"
	productdomain "github.com/vendwatch/vendwatch/internal/product/domain"
	"github.com/vendwatch/vendwatch/internal/reporting/bucket"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/vendwatch/vendwatch/internal/reporting/filter"
	saledomain "github.com/vendwatch/vendwatch/internal/sale/domain"
	scheduledomain "github.com/vendwatch/vendwatch/internal/schedule/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog feeds the access log a stable (type, code) pair
// without writing anything to the response.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isGeographyValidationError(err),
		isMachineValidationError(err),
		isProductValidationError(err),
		isIdentityValidationError(err),
		isIngestValidationError(err),
		isReportValidationError(err),
		isScheduleValidationError(err):
		return true
	default:
		return false
	}
}

func isGeographyValidationError(err error) bool {
	switch {
	case errors.Is(err, geographydomain.ErrInvalidName),
		errors.Is(err, geographydomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isMachineValidationError(err error) bool {
	switch {
	case errors.Is(err, machinedomain.ErrInvalidName),
		errors.Is(err, machinedomain.ErrInvalidID),
		errors.Is(err, machinedomain.ErrInvalidGeography),
		errors.Is(err, machinedomain.ErrInvalidDevice):
		return true
	default:
		return false
	}
}

func isProductValidationError(err error) bool {
	switch {
	case errors.Is(err, productdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidPrice),
		errors.Is(err, productdomain.ErrInvalidCategory),
		errors.Is(err, productdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isIdentityValidationError(err error) bool {
	switch {
	case errors.Is(err, identitydomain.ErrInvalidEmail),
		errors.Is(err, identitydomain.ErrInvalidFullName),
		errors.Is(err, identitydomain.ErrInvalidRole),
		errors.Is(err, identitydomain.ErrInvalidUser),
		errors.Is(err, identitydomain.ErrInvalidTarget):
		return true
	default:
		return false
	}
}

func isIngestValidationError(err error) bool {
	switch {
	case errors.Is(err, saledomain.ErrInvalidSourceID),
		errors.Is(err, saledomain.ErrInvalidMachine),
		errors.Is(err, saledomain.ErrInvalidProduct),
		errors.Is(err, saledomain.ErrInvalidDate),
		errors.Is(err, saledomain.ErrInvalidQuantity),
		errors.Is(err, impressiondomain.ErrInvalidSource),
		errors.Is(err, impressiondomain.ErrInvalidDevice),
		errors.Is(err, impressiondomain.ErrInvalidDate),
		errors.Is(err, impressiondomain.ErrInvalidType),
		errors.Is(err, impressiondomain.ErrInvalidValue):
		return true
	default:
		return false
	}
}

func isReportValidationError(err error) bool {
	switch {
	case errors.Is(err, filter.ErrInvalidDateRange),
		errors.Is(err, filter.ErrUnknownFilterField),
		errors.Is(err, filter.ErrInvalidFilterValue),
		errors.Is(err, filter.ErrSortNotAllowed),
		errors.Is(err, filter.ErrSortListConflict),
		errors.Is(err, bucket.ErrInvalidTimeFrame),
		errors.Is(err, reportingdomain.ErrMissingDateRange),
		errors.Is(err, reportingdomain.ErrUnsupportedTimeFrame),
		errors.Is(err, export.ErrInvalidFormat):
		return true
	default:
		return false
	}
}

func isScheduleValidationError(err error) bool {
	switch {
	case errors.Is(err, scheduledomain.ErrInvalidOwner),
		errors.Is(err, scheduledomain.ErrInvalidName),
		errors.Is(err, scheduledomain.ErrInvalidKind),
		errors.Is(err, scheduledomain.ErrInvalidRecurrence),
		errors.Is(err, scheduledomain.ErrInvalidRecipient),
		errors.Is(err, scheduledomain.ErrInvalidFilter):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, geographydomain.ErrNameTaken),
		errors.Is(err, geographydomain.ErrInUse),
		errors.Is(err, machinedomain.ErrInUse),
		errors.Is(err, productdomain.ErrNameTaken),
		errors.Is(err, productdomain.ErrInUse),
		errors.Is(err, identitydomain.ErrUserExists):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, geographydomain.ErrNotFound),
		errors.Is(err, machinedomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, identitydomain.ErrNotFound),
		errors.Is(err, scheduledomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
