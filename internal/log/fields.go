// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldReceiver  = "receiver"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldDisplay   = "display"
	FieldPID       = "pid"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath     = "path"
	FieldURL      = "url"
	FieldMediaURL = "media_url"
)
