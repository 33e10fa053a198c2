package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeDatabaseError      ErrorCode = "COMMON_005"
	ErrCodeCacheError         ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_007"
	ErrCodeTimeout            ErrorCode = "COMMON_008"
	ErrCodeValidation         ErrorCode = "COMMON_009"
	ErrCodeSerialization      ErrorCode = "COMMON_010"
	ErrCodeExternalService    ErrorCode = "COMMON_011"
	ErrCodeMessageQueue       ErrorCode = "COMMON_012"
	ErrCodeStorage            ErrorCode = "COMMON_013"
	ErrCodeSearchIndex        ErrorCode = "COMMON_014"
	ErrCodeGraph              ErrorCode = "COMMON_015"
	ErrCodeConfig             ErrorCode = "COMMON_016"
)

// Short aliases used at call sites.
const (
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeDatabase     = ErrCodeDatabaseError
	CodeCache        = ErrCodeCacheError
)

// Source Error Codes
const (
	ErrCodeSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeSourceNotFound    ErrorCode = "SRC_002"
	ErrCodeSourceParseError  ErrorCode = "SRC_003"
	ErrCodeArchiveCorrupt    ErrorCode = "SRC_004"
)

// Reaction Module Error Codes
const (
	ErrCodeMalformedEquation    ErrorCode = "RXN_001"
	ErrCodeEmptyConstituent     ErrorCode = "RXN_002"
	ErrCodeInvalidECNumber      ErrorCode = "RXN_003"
	ErrCodeInvalidRheaID        ErrorCode = "RXN_004"
	ErrCodeRecordIncomplete     ErrorCode = "RXN_005"
	ErrCodeRheaNotFound         ErrorCode = "RXN_006"
	ErrCodeEnzymeNotFound       ErrorCode = "RXN_007"
	ErrCodeAnnotatorUnavailable ErrorCode = "RXN_010"
	ErrCodeAnnotatorBadResponse ErrorCode = "RXN_011"
	ErrCodeAnnotatorAuthFailed  ErrorCode = "RXN_012"
)

var codeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeMessageQueue:       http.StatusInternalServerError,
	ErrCodeStorage:            http.StatusInternalServerError,
	ErrCodeSearchIndex:        http.StatusInternalServerError,
	ErrCodeGraph:              http.StatusInternalServerError,
	ErrCodeConfig:             http.StatusInternalServerError,

	ErrCodeSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodeSourceNotFound:    http.StatusNotFound,
	ErrCodeSourceParseError:  http.StatusBadGateway,
	ErrCodeArchiveCorrupt:    http.StatusBadGateway,

	ErrCodeMalformedEquation:    http.StatusBadRequest,
	ErrCodeEmptyConstituent:     http.StatusBadRequest,
	ErrCodeInvalidECNumber:      http.StatusBadRequest,
	ErrCodeInvalidRheaID:        http.StatusBadRequest,
	ErrCodeRecordIncomplete:     http.StatusUnprocessableEntity,
	ErrCodeRheaNotFound:         http.StatusNotFound,
	ErrCodeEnzymeNotFound:       http.StatusNotFound,
	ErrCodeAnnotatorUnavailable: http.StatusBadGateway,
	ErrCodeAnnotatorBadResponse: http.StatusBadGateway,
	ErrCodeAnnotatorAuthFailed:  http.StatusBadGateway,
}

var codeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeExternalService:    "external service error",
	ErrCodeMessageQueue:       "message queue error",
	ErrCodeStorage:            "object storage error",
	ErrCodeSearchIndex:        "search index error",
	ErrCodeGraph:              "graph database error",
	ErrCodeConfig:             "invalid configuration",

	ErrCodeSourceUnavailable: "source unavailable",
	ErrCodeSourceNotFound:    "source not found",
	ErrCodeSourceParseError:  "failed to parse source",
	ErrCodeArchiveCorrupt:    "corrupt source archive",

	ErrCodeMalformedEquation:    "malformed reaction equation",
	ErrCodeEmptyConstituent:     "empty constituent name",
	ErrCodeInvalidECNumber:      "invalid EC number",
	ErrCodeInvalidRheaID:        "invalid Rhea identifier",
	ErrCodeRecordIncomplete:     "record incomplete",
	ErrCodeRheaNotFound:         "rhea reaction not found",
	ErrCodeEnzymeNotFound:       "enzyme record not found",
	ErrCodeAnnotatorUnavailable: "annotation service unavailable",
	ErrCodeAnnotatorBadResponse: "annotation service returned an invalid response",
	ErrCodeAnnotatorAuthFailed:  "annotation service rejected the API key",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := codeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := codeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// ModuleForCode returns the module prefix of an ErrorCode ("RXN", "SRC", ...).
func ModuleForCode(code ErrorCode) string {
	prefix, _, found := strings.Cut(string(code), "_")
	if !found || prefix == "" {
		return "UNKNOWN"
	}
	return prefix
}
