package domain

import "time"

// Outcome tokens for the install/load/check phases. "unknown" on the wire
// means the phase was not recorded and is stored as NULL; any other token
// is stored verbatim.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeUnknown = "unknown"
)

// Result is one authenticated test result. Created exactly once per UUID,
// never updated or deleted.
type Result struct {
	UUID          string  `json:"uuid"`
	Machine       string  `json:"machine"`
	User          string  `json:"user,omitempty"`
	Distribution  string  `json:"dist"`
	Version       string  `json:"version"`
	VersionDate   string  `json:"version_date,omitempty"`
	VersionStatus string  `json:"status,omitempty"`
	PGVersion     string  `json:"pg_version"`
	PGConfig      string  `json:"pg_config,omitempty"`
	EnvInfo       string  `json:"env_info,omitempty"`
	Install       *string `json:"install"`
	Load          *string `json:"load"`
	Check         *string `json:"check"`
	InstallLog    string  `json:"install_log,omitempty"`
	LoadLog       string  `json:"load_log,omitempty"`
	CheckLog      string  `json:"check_log,omitempty"`
	CheckDiff     string  `json:"check_diff,omitempty"`

	InstallDuration *int64 `json:"install_duration,omitempty"`
	LoadDuration    *int64 `json:"load_duration,omitempty"`
	CheckDuration   *int64 `json:"check_duration,omitempty"`

	SubmitDate time.Time `json:"test_date"`
}

// ResultSummary is the listing projection (no logs).
type ResultSummary struct {
	UUID          string  `json:"uuid"`
	Machine       string  `json:"machine"`
	User          string  `json:"user"`
	Distribution  string  `json:"dist"`
	Version       string  `json:"version"`
	VersionStatus string  `json:"status"`
	PGVersion     string  `json:"pg_version"`
	Install       *string `json:"install"`
	Load          *string `json:"load"`
	Check         *string `json:"check"`
	TestDate      string  `json:"test_date"`
}

// ResultTally aggregates phase outcomes for one PostgreSQL version.
type ResultTally struct {
	PGVersion    string `json:"pg_version"`
	Tests        int64  `json:"tests"`
	InstallOK    int64  `json:"install_ok"`
	InstallError int64  `json:"install_error"`
	LoadOK       int64  `json:"load_ok"`
	LoadError    int64  `json:"load_error"`
	CheckOK      int64  `json:"check_ok"`
	CheckError   int64  `json:"check_error"`
	CheckMissing int64  `json:"check_missing"`
}

// SubmitRequest is a decoded result submission. Fields holds every
// payload field in the exact string form it arrived in; the signature is
// verified over those strings, so the server never re-renders values.
type SubmitRequest struct {
	Distribution string
	Version      string
	Machine      string
	Signature    string

	Install string
	Load    string
	Check   string

	InstallLog string
	LoadLog    string
	CheckLog   string
	CheckDiff  string

	InstallDuration *int64
	LoadDuration    *int64
	CheckDuration   *int64

	PGConfig string
	EnvInfo  string
	UUID     string

	Fields map[string]string
}

// NormalizeOutcome maps the wire token to the stored value: "unknown" and
// the empty string mean not-recorded (NULL), anything else is kept as-is.
func NormalizeOutcome(tok string) *string {
	if tok == "" || tok == OutcomeUnknown {
		return nil
	}
	return &tok
}
