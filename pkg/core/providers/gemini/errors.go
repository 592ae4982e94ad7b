package gemini

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core"
)

// mapError converts SDK and network failures into the core error taxonomy.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewTransportError(op+": "+err.Error(), err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return mapAPIError(op, apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return mapAPIError(op, *apiErrPtr)
	}

	if core.LooksLikeInvalidCredential(err.Error()) {
		return core.NewUpstreamRejectedError(op+": "+err.Error(), "", err)
	}
	return core.NewTransportError(op, err)
}

func mapAPIError(op string, apiErr genai.APIError) error {
	code := strings.TrimSpace(apiErr.Status)
	if code == "" && apiErr.Code != 0 {
		code = strconv.Itoa(apiErr.Code)
	}
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = http.StatusText(apiErr.Code)
	}

	switch {
	case apiErr.Code == http.StatusUnauthorized,
		apiErr.Code == http.StatusForbidden,
		apiErr.Status == "UNAUTHENTICATED",
		apiErr.Status == "PERMISSION_DENIED",
		core.LooksLikeInvalidCredential(msg):
		return core.NewUpstreamRejectedError(msg, code, apiErr)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return core.NewUpstreamRejectedError(msg, code, apiErr)
	default:
		return core.NewTransportError(op+": "+msg, apiErr)
	}
}
