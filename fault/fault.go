// Copyright 2025 Crucible Ledger Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fault defines the error taxonomy shared by the lifecycle engine
// and the coordinators. Every user-visible failure carries a stable Kind so
// callers can decide whether a retry, a re-query, or a fix is the right
// remedy.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation marks malformed or missing required fields. Never retried.
	KindValidation Kind = "validation"
	// KindBadRequest marks a structurally unusable request, such as an
	// unknown operation name or a wrong argument count.
	KindBadRequest Kind = "bad_request"
	// KindConflict marks duplicate ids and double registrations.
	KindConflict Kind = "conflict"
	// KindForbidden marks role, organization, and phase-gate failures.
	KindForbidden Kind = "forbidden"
	// KindNotFound marks a missing aggregate document.
	KindNotFound Kind = "not_found"
	// KindConfiguration marks topology misconfiguration, such as a channel
	// with no endorsing peers for the caller's organization. Fatal.
	KindConfiguration Kind = "configuration"
	// KindEndorsement means at least one endorser rejected or errored. The
	// transaction was definitely not committed; the caller may resubmit.
	KindEndorsement Kind = "endorsement"
	// KindOrdering means the ordering service rejected the transaction.
	KindOrdering Kind = "ordering"
	// KindCommit means a watched peer invalidated the transaction at commit,
	// typically a read-version conflict. Definitely not applied; safe to
	// rebuild and resubmit.
	KindCommit Kind = "commit"
	// KindCommitTimeout means a commit-event wait exceeded its deadline. The
	// outcome is ambiguous: the write may have committed. Callers must
	// re-query state rather than blindly retry.
	KindCommitTimeout Kind = "commit_timeout"
	// KindQuery means all query-capable peers errored or returned nothing.
	KindQuery Kind = "query"
)

// Error is the single tagged error type used across the module. Op and Target
// give enough context to make the failure actionable (operation name plus
// the document or transaction id it concerned).
type Error struct {
	Kind   Kind
	Op     string
	Target string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Op != "" {
		s += " " + e.Op
	}
	if e.Target != "" {
		s += " [" + e.Target + "]"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a tagged error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and operation context. The
// underlying kind is not overridden when the wrapped error is already tagged;
// only the outermost Op/Target are added.
func Wrap(err error, kind Kind, op, target string) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		kind = fe.Kind
	}
	return &Error{Kind: kind, Op: op, Target: target, Err: err}
}

// KindOf returns the kind of a tagged error, or an empty kind for untagged
// errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether the error is tagged with the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func BadRequest(format string, args ...any) *Error {
	return New(KindBadRequest, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, format, args...)
}
