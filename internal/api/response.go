package api

import (
	"errors"
	"net/http"

	"rollouthq/internal/apperr"
	"rollouthq/internal/dto/resp"
	"rollouthq/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, resp.Data{Data: data})
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, resp.Error{Error: resp.ErrorBody{Message: msg, Code: code}})
}

// fail maps err to its HTTP status. Internal errors are logged and their details hidden.
func fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("trace_id", c.GetString("TraceID")),
			zap.Error(err))
		abort(c, http.StatusInternalServerError, kind.String(), "Internal server error")
		return
	}

	msg := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	abort(c, kind.HTTPStatus(), kind.String(), msg)
}

func badRequest(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, apperr.Validation.String(), err.Error())
}
