package httputil

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/fieldservice-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Meta    *Pagination  `json:"meta,omitempty"`
}

// FieldError describes a single failed validation rule
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"page_size"`
	Total     int `json:"total"`
	TotalPage int `json:"total_pages"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

// RespondWithMessage sends a success response carrying only a message
func RespondWithMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, &Response{Status: "success", Message: message})
}

// RespondWithPagination sends a paginated response
func RespondWithPagination(c *gin.Context, data interface{}, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	c.JSON(http.StatusOK, &Response{
		Status: "success",
		Data:   data,
		Meta: &Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPages,
		},
	})
}

// RespondWithError maps err to a status code and sends an error response.
// Binding failures become 400s with per-field messages, AppErrors carry
// their own status and anything else is logged and reported as a 500.
func RespondWithError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		resp := NewErrorResponse("validation failed")
		for _, fe := range verrs {
			resp.Errors = append(resp.Errors, FieldError{
				Field:   fe.Field(),
				Message: validationMessage(fe),
			})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
		return
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr) ||
		stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("malformed request body"))
		return
	}

	if appErr, ok := errors.As(err); ok {
		status := appErr.StatusCode()
		if status >= http.StatusInternalServerError {
			logError(c, err)
		}
		c.AbortWithStatusJSON(status, NewErrorResponse(appErr.Message))
		return
	}

	logError(c, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
}

// RespondWithBindError reports a failed ShouldBind* call. Anything that is
// not a validation failure is treated as an unreadable body.
func RespondWithBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		RespondWithError(c, err)
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("malformed request body"))
}

func logError(c *gin.Context, err error) {
	log.Error().
		Err(err).
		Str("request_id", c.GetString("request_id")).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("Request failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "email":
		return "invalid email format"
	case "url":
		return "invalid url"
	case "uuid":
		return "invalid id"
	case "min":
		return "value is too short or too small, min " + fe.Param()
	case "max":
		return "value is too long or too large, max " + fe.Param()
	case "gt":
		return "value must be greater than " + fe.Param()
	case "gte":
		return "value must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "time_hhmm":
		return "must be a time in HH:MM format"
	default:
		return "failed on " + fe.Tag() + " rule"
	}
}
