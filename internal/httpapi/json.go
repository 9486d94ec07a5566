// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON strictly decodes a single JSON object into v and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return oops.Code("REQUEST_TOO_LARGE").
				With("limit", maxErr.Limit).
				Wrapf(errutil.ErrValidation, "request body is too large")
		}
		if errors.Is(err, io.EOF) {
			return oops.Code("REQUEST_INVALID").Wrapf(errutil.ErrValidation, "request body is required")
		}
		return oops.Code("REQUEST_INVALID").Wrapf(errutil.ErrValidation, "malformed request body: %v", err)
	}
	if dec.More() {
		return oops.Code("REQUEST_INVALID").Wrapf(errutil.ErrValidation, "request body must hold a single JSON object")
	}
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return oops.Code("REQUEST_INVALID").
				With("field", fe.Namespace()).
				With("rule", fe.Tag()).
				Wrapf(errutil.ErrValidation, "field %s failed %q", fe.Field(), fe.Tag())
		}
		return oops.Code("REQUEST_INVALID").Wrapf(errutil.ErrValidation, "%v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnContext(r.Context(), "response encoding failed", "error", err)
	}
}
