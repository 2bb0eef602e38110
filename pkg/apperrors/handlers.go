package apperrors

import (
	"log"

	"github.com/gin-gonic/gin"
)

// Response is the single envelope shape every endpoint answers with.
// Error is only populated outside production.
type Response struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Error      interface{} `json:"error,omitempty"`
}

// GinErrorHandler maps AppErrors onto the response envelope.
type GinErrorHandler struct {
	Debug bool
}

// debugMode is set once at startup from the server env.
var debugMode = true

// SetDebug switches internal error detail on or off for all responses.
func SetDebug(debug bool) {
	debugMode = debug
}

func (h *GinErrorHandler) HandleGinError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}

	if appErr.HTTPCode >= 500 {
		log.Printf("Server error: %v", appErr)
	}

	resp := Response{
		Success:    false,
		StatusCode: appErr.HTTPCode,
		Message:    appErr.Message,
	}
	if h.Debug {
		resp.Error = appErr
	}

	c.JSON(appErr.HTTPCode, resp)
}

// HandleError is the helper every handler calls on failure.
func HandleError(c *gin.Context, err error) {
	handler := &GinErrorHandler{Debug: debugMode}
	handler.HandleGinError(c, err)
}

// AsAppError attempts to interpret err as an *AppError.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
