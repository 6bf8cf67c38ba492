package ratelimit

import (
	"net/http"
	"strconv"

	"websites-gateway/middleware/ratelimit/domain"
)

const precision = "millisecond"

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func setRouteHeaders(h http.Header, d domain.Decision) {
	h.Set("X-RateLimit-Limit", formatInt(d.Limit))
	h.Set("X-RateLimit-Remaining", formatInt(d.Remaining))
	h.Set("X-RateLimit-Reset", formatInt(d.ResetAt.UnixMilli()))
	h.Set("X-RateLimit-Reset-After", formatInt(d.ResetAfter.Milliseconds()))
	h.Set("X-RateLimit-Bucket", d.Bucket)
	h.Set("X-RateLimit-Precision", precision)
}

func setGlobalHeaders(h http.Header, d domain.Decision) {
	h.Set("X-RateLimit-Global-Limit", formatInt(d.Limit))
	h.Set("X-RateLimit-Global-Remaining", formatInt(d.Remaining))
	h.Set("X-RateLimit-Global-Reset", formatInt(d.ResetAt.UnixMilli()))
	h.Set("X-RateLimit-Global-Reset-After", formatInt(d.ResetAfter.Milliseconds()))
	h.Set("X-RateLimit-Global-Precision", precision)
}

// RejectionBody é o JSON devolvido junto com o 429.
type RejectionBody struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Code    int           `json:"code"`
	Info    RejectionInfo `json:"info"`
}

type RejectionInfo struct {
	Limit      int64   `json:"limit"`
	Remaining  int64   `json:"remaining"`
	Reset      int64   `json:"reset"`
	ResetAfter int64   `json:"resetAfter"`
	RetryAfter int64   `json:"retryAfter"`
	Bucket     *string `json:"bucket"`
	Precision  string  `json:"precision"`
	Global     bool    `json:"global"`
}

func rejectionBody(ev domain.Evaluation) RejectionBody {
	d := ev.Route
	global := ev.Rejection.Code == domain.RejectGlobal
	if global {
		d = ev.Global
	}
	info := RejectionInfo{
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		Reset:      d.ResetAt.UnixMilli(),
		ResetAfter: d.ResetAfter.Milliseconds(),
		RetryAfter: ev.Rejection.RetryAfterSeconds(),
		Precision:  precision,
		Global:     global,
	}
	if !global {
		b := d.Bucket
		info.Bucket = &b
	}
	return RejectionBody{
		Success: false,
		Error:   "Request Limit Exceeded",
		Code:    int(ev.Rejection.Code),
		Info:    info,
	}
}
