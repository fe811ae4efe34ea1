package server

import (
	"github.com/gin-gonic/gin"

	"github.com/sorenmh/pushdash/internal/viewmodel"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type AppsResponse struct {
	Apps []viewmodel.AppRow `json:"apps"`
}

type DeploymentsResponse struct {
	App         string                    `json:"app"`
	Deployments []viewmodel.DeploymentRow `json:"deployments"`
}

type MetricsResponse struct {
	App        string                `json:"app"`
	Deployment string                `json:"deployment"`
	Metrics    []viewmodel.MetricRow `json:"metrics"`
}

type HistoryResponse struct {
	App        string                 `json:"app"`
	Deployment string                 `json:"deployment"`
	History    []viewmodel.HistoryRow `json:"history"`
}

// writeError writes an error response and aborts the chain
func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
