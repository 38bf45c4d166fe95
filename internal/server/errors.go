package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	menudomain "github.com/smallbiznis/qrdine/internal/menu/domain"
	orderdomain "github.com/smallbiznis/qrdine/internal/order/domain"
	restaurantdomain "github.com/smallbiznis/qrdine/internal/restaurant/domain"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	"github.com/smallbiznis/qrdine/pkg/db"
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
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case errors.Is(err, orderdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_transition",
			Message: "status transition not allowed",
		}
	case errors.Is(err, orderdomain.ErrSubmissionInFlight):
		return http.StatusConflict, errorPayload{
			Type:    "submission_in_flight",
			Message: "order submission already in progress",
		}
	case errors.Is(err, ErrConflict), db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many orders, try again shortly",
		}
	case errors.Is(err, invoicedomain.ErrNoLineItems):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "no_line_items",
			Message: "order has no line items to invoice",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code written to request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "server", code
	}
	return "client", code
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
	case isTaxValidationError(err),
		isRestaurantValidationError(err),
		isMenuValidationError(err),
		isOrderValidationError(err),
		isInvoiceValidationError(err):
		return true
	default:
		return false
	}
}

func isTaxValidationError(err error) bool {
	return errors.Is(err, taxdomain.ErrInvalidTaxRate) ||
		errors.Is(err, taxdomain.ErrNegativeAmount) ||
		errors.Is(err, taxdomain.ErrTooManyDecimals)
}

func isRestaurantValidationError(err error) bool {
	return errors.Is(err, restaurantdomain.ErrInvalidID) ||
		errors.Is(err, restaurantdomain.ErrInvalidName) ||
		errors.Is(err, restaurantdomain.ErrInvalidGSTIN) ||
		errors.Is(err, restaurantdomain.ErrInvalidEmail)
}

func isMenuValidationError(err error) bool {
	return errors.Is(err, menudomain.ErrInvalidID) ||
		errors.Is(err, menudomain.ErrInvalidRestaurant) ||
		errors.Is(err, menudomain.ErrInvalidName) ||
		errors.Is(err, menudomain.ErrInvalidStatus) ||
		errors.Is(err, menudomain.ErrInvalidHSN) ||
		errors.Is(err, menudomain.ErrPackagedRateNeeded)
}

func isOrderValidationError(err error) bool {
	return errors.Is(err, orderdomain.ErrInvalidID) ||
		errors.Is(err, orderdomain.ErrInvalidRestaurant) ||
		errors.Is(err, orderdomain.ErrEmptyCart) ||
		errors.Is(err, orderdomain.ErrInvalidQuantity) ||
		errors.Is(err, orderdomain.ErrInvalidOrderType) ||
		errors.Is(err, orderdomain.ErrInvalidStatus) ||
		errors.Is(err, orderdomain.ErrMissingSubmissionToken)
}

func isInvoiceValidationError(err error) bool {
	return errors.Is(err, invoicedomain.ErrInvalidID) ||
		errors.Is(err, invoicedomain.ErrInvalidRestaurant) ||
		errors.Is(err, invoicedomain.ErrInvalidDateRange)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, restaurantdomain.ErrNotFound),
		errors.Is(err, menudomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrOrderNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, restaurantdomain.ErrNotFound):
		return "restaurant not found"
	case errors.Is(err, menudomain.ErrNotFound):
		return "menu item not found"
	case errors.Is(err, orderdomain.ErrNotFound), errors.Is(err, invoicedomain.ErrOrderNotFound):
		return "order not found"
	case errors.Is(err, invoicedomain.ErrNotFound):
		return "invoice not found"
	default:
		return "not found"
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "empty_cart", "invalid_quantity":
		return "lines"
	case "missing_submission_token":
		return "submission_token"
	case "negative_amount", "too_many_decimal_places":
		return "unit_price"
	case "packaged_item_requires_tax_rate":
		return "tax_rate"
	case "invalid_date_range":
		return "from"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "empty_cart":
		return "order must contain at least one line"
	case "invalid_quantity":
		return "quantity must be at least 1"
	case "invalid_tax_rate":
		return "tax rate must be between 0 and 100"
	case "negative_amount":
		return "amount must not be negative"
	case "too_many_decimal_places":
		return "amount must have at most two decimal places"
	default:
		return "invalid value"
	}
}
