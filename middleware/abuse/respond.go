// Package abuse tem os middlewares que barram clientes antes do rate limit:
// user agents bloqueados por regex e IPs listados num arquivo JSON.
package abuse

import (
	"encoding/json"
	"net/http"
)

const (
	CodeSuspectedBrowserImpersonation = 1002
	CodeBlockedUserAgent              = 1021
)

type blockedBody struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    int         `json:"code"`
	Extra   blockedInfo `json:"extra"`
}

type blockedInfo struct {
	Reason string `json:"reason"`
	Help   string `json:"help,omitempty"`
}

func writeForbidden(w http.ResponseWriter, body blockedBody) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(body)
}
