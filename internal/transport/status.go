package transport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	gws "github.com/gorilla/websocket"
)

func sanitizeStatusCode(status string) string {
	trimmed := strings.TrimSpace(status)
	if trimmed == "" {
		return "UNKNOWN"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", ".", "_", "-", "_")
	normalized := replacer.Replace(trimmed)
	normalized = strings.ToUpper(normalized)
	normalized = strings.Trim(normalized, "_")
	if normalized == "" {
		return "UNKNOWN"
	}
	return normalized
}

// fallbackStatusCode derives a status label from the error's type name.
func fallbackStatusCode(err error) string {
	if err == nil {
		return ""
	}
	typeName := fmt.Sprintf("%T", err)
	typeName = strings.TrimPrefix(typeName, "*")
	if idx := strings.LastIndex(typeName, "/"); idx != -1 {
		typeName = typeName[idx+1:]
	}
	if idx := strings.LastIndex(typeName, "."); idx != -1 {
		typeName = typeName[idx+1:]
	}
	return sanitizeStatusCode(typeName)
}

func websocketStatusFromError(err error) string {
	var closeErr *gws.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != 0 {
		return strconv.Itoa(closeErr.Code)
	}
	return fallbackStatusCode(err)
}

// unwrapFmt strips fmt.Errorf wrapping so the error-type breakdown names the
// underlying failure instead of the wrapper.
func unwrapFmt(err error) error {
	for err != nil {
		switch fmt.Sprintf("%T", err) {
		case "*fmt.wrapError", "*fmt.wrapErrors":
			next := errors.Unwrap(err)
			if next == nil {
				return err
			}
			err = next
		default:
			return err
		}
	}
	return err
}
