package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/deployguide/internal/services"
	"github.com/huangang/deployguide/pkg/response"
)

// toAppError maps a service error onto its HTTP status and code. The message
// is kept as the detail.
func toAppError(err error) *response.AppError {
	var (
		appErr      *response.AppError
		invalid     *services.ValidationError
		notFound    *services.NotFoundError
		cfgErr      *services.ConfigurationError
		tplErr      *services.TemplateNotFoundError
		upstreamErr *services.UpstreamError
		storageErr  *services.StorageError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &invalid):
		return response.New(http.StatusBadRequest, response.CodeBadRequest, err)
	case errors.As(err, &notFound):
		return response.New(http.StatusNotFound, response.CodeNotFound, err)
	case errors.As(err, &cfgErr):
		return response.New(http.StatusInternalServerError, response.CodeConfiguration, err)
	case errors.As(err, &tplErr):
		return response.New(http.StatusInternalServerError, response.CodeTemplate, err)
	case errors.As(err, &upstreamErr):
		return response.New(http.StatusBadGateway, response.CodeUpstream, err)
	case errors.As(err, &storageErr):
		return response.New(http.StatusInternalServerError, response.CodeStorage, err)
	default:
		return response.New(http.StatusInternalServerError, response.CodeInternal, err)
	}
}

func fail(c *gin.Context, err error) {
	response.Error(c, toAppError(err))
}
