// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package httpapi exposes the task engine and account services over
// HTTP+JSON.
//
// Clients authenticate by sending the session token in the x-auth header.
// Register, Login, ChangePassword and ChangeEmail return a fresh token in
// the same header. Request bodies are decoded strictly: unknown fields are
// rejected, so every route accepts an explicit allow-list of fields.
//
// Errors are rendered as
//
//	{"error": {"code": "TASK_NOT_FOUND", "message": "not found"}}
//
// with the HTTP status derived from the error kind.
package httpapi
