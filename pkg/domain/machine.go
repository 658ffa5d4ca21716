package domain

// Machine is a registered test runner. Machines are administered out of
// band; the server only reads them. SecretKey is the shared secret the
// machine signs result submissions with and is never serialized.
type Machine struct {
	ID          int64  `json:"-"`
	Name        string `json:"name"`
	SecretKey   string `json:"-"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsApproved  bool   `json:"-"`
}

// MachineInfo is the listing projection: a machine plus its test tallies.
type MachineInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	IsActive      bool   `json:"is_active"`
	Distributions int64  `json:"distributions"`
	Versions      int64  `json:"versions"`
	Tests         int64  `json:"tests"`
	LastTestDate  string `json:"last_test_date,omitempty"`
}
