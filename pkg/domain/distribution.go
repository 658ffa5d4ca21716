package domain

import "encoding/json"

// User is a registry user owning distributions. Mirrored from the
// upstream registry by the sync job.
type User struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name,omitempty"`
	Distributions int64  `json:"distributions"`
}

// Distribution is an extension distribution mirrored from the upstream
// registry, owned by a registry user.
type Distribution struct {
	ID   int64  `json:"-"`
	Name string `json:"dist"`
	User string `json:"user"`
}

// DistributionVersion is one released version of a distribution. Versions
// are immutable once created; only the status may change, and that happens
// in the sync job, never here.
type DistributionVersion struct {
	ID       int64  `json:"-"`
	DistID   int64  `json:"-"`
	DistName string `json:"dist,omitempty"`
	Version  string `json:"version"`
	Date     string `json:"date,omitempty"`
	Status   string `json:"status,omitempty"`
	Meta     []byte `json:"-"`
}

// WorkQueueItem is a pending test obligation for a machine at a target
// PostgreSQL version. It is derived on every queue request and never
// stored.
type WorkQueueItem struct {
	Distribution string `json:"distribution"`
	Version      string `json:"version"`
}

// prereqPhases are the metadata phases scanned for PostgreSQL version
// requirements.
var prereqPhases = [...]string{"configure", "build", "test", "runtime"}

// prereqRelations are the nested relationship keys some upstream metadata
// variants put between the phase and the package map.
var prereqRelations = [...]string{"requires", "recommends", "suggests"}

type versionMeta struct {
	Prereqs map[string]json.RawMessage `json:"prereqs"`
}

// PostgreSQLPrereqs extracts the PostgreSQL version constraints from a raw
// metadata blob, unioning the {configure, build, test, runtime} phases.
// The blob is decoded defensively: anything absent or of an unexpected
// shape simply contributes no constraint.
func PostgreSQLPrereqs(meta []byte) []string {
	if len(meta) == 0 {
		return nil
	}
	var m versionMeta
	if err := json.Unmarshal(meta, &m); err != nil || m.Prereqs == nil {
		return nil
	}

	var constraints []string
	for _, phase := range prereqPhases {
		raw, ok := m.Prereqs[phase]
		if !ok {
			continue
		}

		// flat shape: {phase: {package: constraint}}
		var flat map[string]string
		if err := json.Unmarshal(raw, &flat); err == nil {
			if c, ok := flat["PostgreSQL"]; ok {
				constraints = append(constraints, c)
			}
			continue
		}

		// nested shape: {phase: {requires: {package: constraint}}}
		var nested map[string]map[string]string
		if err := json.Unmarshal(raw, &nested); err != nil {
			continue
		}
		for _, rel := range prereqRelations {
			if c, ok := nested[rel]["PostgreSQL"]; ok {
				constraints = append(constraints, c)
			}
		}
	}
	return constraints
}
