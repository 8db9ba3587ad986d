package http

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"reservation-service/internal/apperror"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// retryAfterSeconds отдаётся в Retry-After для CONCURRENCY_ABORT / TRANSACTION_TIMEOUT.
const retryAfterSeconds = 1

func statusFor(code apperror.Code) int {
	switch code {
	case apperror.CodeInvalidDateRange, apperror.CodeValidation:
		return http.StatusBadRequest
	case apperror.CodeRoomTypeNotFound, apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeInsufficientInventory, apperror.CodeDateBlocked, apperror.CodeRuleConflict:
		return http.StatusConflict
	case apperror.CodeIdempotencyConflict:
		return http.StatusUnprocessableEntity
	case apperror.CodeConcurrencyAbort, apperror.CodeTransactionTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toBaseError(e *apperror.Error) BaseError {
	out := BaseError{
		Code:      string(e.Code),
		Message:   e.Message,
		Retryable: apperror.Retryable(e),
	}
	if len(e.Dates) > 0 {
		out.Dates = e.DateStrings()
	}
	if e.Code == apperror.CodeInsufficientInventory {
		available, requested := e.Available, e.Requested
		out.Available = &available
		out.Requested = &requested
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for f := range e.Fields {
			names = append(names, f)
		}
		sort.Strings(names)
		for _, f := range names {
			out.Fields = append(out.Fields, FieldError{Field: f, Message: e.Fields[f]})
		}
	}
	return out
}

// writeError: единая точка ответа ошибкой, коды движка → HTTP статус, остальное → 500.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	e, ok := apperror.As(err)
	if !ok {
		log.Error("unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, NewInternalError(""))
		return
	}

	status := statusFor(e.Code)
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		log.Error("request failed", zap.String("code", string(e.Code)), zap.Error(err))
	case status == http.StatusServiceUnavailable:
		log.Warn("request should be retried", zap.String("code", string(e.Code)), zap.Error(err))
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	default:
		log.Debug("request rejected", zap.String("code", string(e.Code)), zap.String("message", e.Message))
	}
	c.JSON(status, toBaseError(e))
}

// writeBindError отвечает на ошибку разбора тела запроса.
func writeBindError(c *gin.Context, log *zap.Logger, err error) {
	log.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Message: fe.Error(),
				Tag:     fe.Tag(),
			})
		}
		c.JSON(http.StatusBadRequest, NewValidationError("validation failed", fields))
		return
	}
	c.JSON(http.StatusBadRequest, NewValidationError("invalid request body", []FieldError{{Field: "body", Message: err.Error()}}))
}
