package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Domain is a normalized host name: trimmed and lower-cased.
type Domain string

// Normalize trims surrounding whitespace and lower-cases s.
func Normalize(s string) Domain {
	return Domain(strings.ToLower(strings.TrimSpace(s)))
}

// Tri is a three-valued result field. The zero value is Unknown, meaning
// the check was never attempted.
type Tri uint8

const (
	Unknown Tri = iota
	True
	False
)

func TriOf(b bool) Tri {
	if b {
		return True
	}
	return False
}

// Known reports whether the check was attempted.
func (t Tri) Known() bool { return t != Unknown }

// String renders the CSV cell form: "true", "false" or "" for Unknown.
func (t Tri) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return ""
	}
}

// Ptr maps Unknown to nil, for nullable columns.
func (t Tri) Ptr() *bool {
	if t == Unknown {
		return nil
	}
	b := t == True
	return &b
}

func (t Tri) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Ptr())
}

func (t *Tri) UnmarshalJSON(b []byte) error {
	var v *bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = Unknown
	if v != nil {
		*t = TriOf(*v)
	}
	return nil
}

// ProbeResult is the outcome of probing one domain.
//
// Fields:
//   - DNS is always True or False once the probe ran.
//   - HTTP stays Unknown whenever DNS is False.
//   - StatusCode, Scheme and Reason are diagnostics only; 0/"" when no
//     HTTP response was obtained.
type ProbeResult struct {
	Domain     Domain    `json:"domain"`
	DNS        Tri       `json:"dns"`
	HTTP       Tri       `json:"http"`
	StatusCode int       `json:"status_code,omitempty"`
	Scheme     string    `json:"scheme,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Batch is a contiguous chunk of the input, numbered from 0.
type Batch struct {
	Index   int
	Domains []Domain
}

func (b Batch) Len() int { return len(b.Domains) }

// RunStats is the progress view of a run.
type RunStats struct {
	Total         int           `json:"total"`
	Processed     int           `json:"processed"`
	Batches       int           `json:"batches"`
	BatchesDone   int           `json:"batches_done"`
	BatchesFailed int           `json:"batches_failed"`
	DNSResolved   int           `json:"dns_resolved"`
	HTTPAlive     int           `json:"http_alive"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}
