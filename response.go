package imap

import (
	"errors"
	"strings"
)

// Error kinds reported by the mailbox layer. Callers match them with
// errors.Is; the concrete error usually wraps a more specific cause.
var (
	// ErrInvalidSearchCriteria is returned, before anything is sent, when a
	// search criterion or a message set cannot be expressed on the wire.
	ErrInvalidSearchCriteria = errors.New("imap: invalid search criteria")
	// ErrMessageNotFound is returned when a message handle refers to a UID
	// the server could not materialize.
	ErrMessageNotFound = errors.New("imap: message not found")
	// ErrMessageCopyFailed is returned when the server rejects a COPY.
	ErrMessageCopyFailed = errors.New("imap: message copy failed")
	// ErrMessageMoveFailed is returned when the server rejects a MOVE.
	ErrMessageMoveFailed = errors.New("imap: message move failed")
)

// StatusResponseType represents the type of a status response.
type StatusResponseType string

const (
	StatusResponseTypeOK      StatusResponseType = "OK"
	StatusResponseTypeNO      StatusResponseType = "NO"
	StatusResponseTypeBAD     StatusResponseType = "BAD"
	StatusResponseTypeBYE     StatusResponseType = "BYE"
	StatusResponseTypePREAUTH StatusResponseType = "PREAUTH"
)

// ResponseCode represents a response code in brackets.
type ResponseCode string

// Response codes the mailbox layer inspects.
const (
	ResponseCodeAlert       ResponseCode = "ALERT"
	ResponseCodeBadCharset  ResponseCode = "BADCHARSET"
	ResponseCodeCapability  ResponseCode = "CAPABILITY"
	ResponseCodeParse       ResponseCode = "PARSE"
	ResponseCodeReadOnly    ResponseCode = "READ-ONLY"
	ResponseCodeReadWrite   ResponseCode = "READ-WRITE"
	ResponseCodeTryCreate   ResponseCode = "TRYCREATE"
	ResponseCodeUIDNext     ResponseCode = "UIDNEXT"
	ResponseCodeUIDValidity ResponseCode = "UIDVALIDITY"
	ResponseCodeNonExistent ResponseCode = "NONEXISTENT"
	ResponseCodeCannot      ResponseCode = "CANNOT"
)

// StatusResponse represents an IMAP status response.
type StatusResponse struct {
	// Type is the response type (OK, NO, BAD, BYE, PREAUTH).
	Type StatusResponseType
	// Code is the optional response code, without its argument.
	Code ResponseCode
	// CodeArg is the optional argument to the response code.
	CodeArg string
	// Text is the human-readable text.
	Text string
}

// Error returns the status response as an error string.
func (r *StatusResponse) Error() string {
	var b strings.Builder
	b.WriteString(string(r.Type))
	if r.Code != "" {
		b.WriteString(" [")
		b.WriteString(string(r.Code))
		if r.CodeArg != "" {
			b.WriteString(" ")
			b.WriteString(r.CodeArg)
		}
		b.WriteString("]")
	}
	if r.Text != "" {
		b.WriteString(" ")
		b.WriteString(r.Text)
	}
	return b.String()
}

// IMAPError is an error type that wraps a non-OK tagged status response.
type IMAPError struct {
	*StatusResponse
}

// Error implements the error interface.
func (e *IMAPError) Error() string {
	return e.StatusResponse.Error()
}

// NewStatusError builds an *IMAPError from the parts of a tagged response.
// code is the raw bracketed text, e.g. "TRYCREATE" or "UIDNEXT 4".
func NewStatusError(status, code, text string) *IMAPError {
	name, arg, _ := strings.Cut(code, " ")
	return &IMAPError{&StatusResponse{
		Type:    StatusResponseType(strings.ToUpper(status)),
		Code:    ResponseCode(strings.ToUpper(name)),
		CodeArg: arg,
		Text:    text,
	}}
}

// ErrNo creates a NO error with the given text.
func ErrNo(text string) *IMAPError {
	return &IMAPError{&StatusResponse{
		Type: StatusResponseTypeNO,
		Text: text,
	}}
}

// ErrNoWithCode creates a NO error with a response code.
func ErrNoWithCode(code ResponseCode, text string) *IMAPError {
	return &IMAPError{&StatusResponse{
		Type: StatusResponseTypeNO,
		Code: code,
		Text: text,
	}}
}

// ErrBad creates a BAD error with the given text.
func ErrBad(text string) *IMAPError {
	return &IMAPError{&StatusResponse{
		Type: StatusResponseTypeBAD,
		Text: text,
	}}
}

// HasCode reports whether err is an *IMAPError carrying the response code.
func HasCode(err error, code ResponseCode) bool {
	var imapErr *IMAPError
	if !errors.As(err, &imapErr) {
		return false
	}
	return imapErr.Code == code
}
