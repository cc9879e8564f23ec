package rawstore

import (
	"path/filepath"
	"strings"
)

// Paths is the conventional on-disk layout for ingestion data:
//
//	<root>/bronze/provider=…/league=…/date=…/run_id=…/endpoint=…/
//	<root>/runs/<date>/run_id=…/
//	<root>/checkpoints/<provider>/<league>.json
type Paths struct {
	Root string
}

func (p Paths) BronzeRoot() string      { return filepath.Join(p.Root, "bronze") }
func (p Paths) RunsRoot() string        { return filepath.Join(p.Root, "runs") }
func (p Paths) CheckpointsRoot() string { return filepath.Join(p.Root, "checkpoints") }

// BronzeRunDir is the capture directory for one (provider, league, date,
// run, endpoint) combination. Endpoints contain slashes; they are flattened
// to path-safe names.
func (p Paths) BronzeRunDir(provider, league, date, runID, endpoint string) string {
	endpointSafe := strings.ReplaceAll(strings.Trim(endpoint, "/"), "/", "_")
	return filepath.Join(
		p.BronzeRoot(),
		"provider="+provider,
		"league="+league,
		"date="+date,
		"run_id="+runID,
		"endpoint="+endpointSafe,
	)
}

func (p Paths) RunDir(date, runID string) string {
	return filepath.Join(p.RunsRoot(), date, "run_id="+runID)
}

func (p Paths) CheckpointPath(provider, league string) string {
	return filepath.Join(p.CheckpointsRoot(), provider, league+".json")
}
