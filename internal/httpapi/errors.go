// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/dayplan/dayplan/pkg/errutil"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// StatusFor maps an error kind to the HTTP status clients see.
func StatusFor(kind errutil.Kind) int {
	switch kind {
	case errutil.KindValidation:
		return http.StatusBadRequest
	case errutil.KindNotFound:
		return http.StatusNotFound
	case errutil.KindConflict:
		return http.StatusConflict
	case errutil.KindAuthentication:
		return http.StatusUnauthorized
	case errutil.KindExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// safeMessage never echoes storage or internal diagnostics.
func safeMessage(kind errutil.Kind, err error) string {
	switch kind {
	case errutil.KindValidation:
		return err.Error()
	case errutil.KindNotFound:
		return "not found"
	case errutil.KindConflict:
		return "conflict"
	case errutil.KindAuthentication:
		return "authentication failed"
	case errutil.KindExpired:
		return "expired"
	default:
		return "internal error"
	}
}

func toErrorBody(err error) errorBody {
	kind := errutil.KindOf(err)
	code := errutil.Code(err)
	if code == "" {
		code = "INTERNAL"
	}
	return errorBody{Code: code, Message: safeMessage(kind, err)}
}

// writeError renders err and logs it when the failure is on the server side.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(errutil.KindOf(err))
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected",
			"status", status,
			"code", errutil.Code(err))
	}
	writeJSON(w, r, logger, status, errorEnvelope{Error: toErrorBody(err)})
}
