// Package deploy reads the environment descriptor emitted when the registry
// backend is provisioned. Consumers use it to locate the ledger endpoint and
// to report provenance on health checks.
package deploy

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	dErrors "visitid/pkg/domain-errors"
)

// Descriptor identifies a provisioned registry backend.
type Descriptor struct {
	Address    string    `json:"address"`
	NetworkID  string    `json:"networkId"`
	Deployer   string    `json:"deployer"`
	DeployedAt time.Time `json:"deployedAt"`
}

// Load reads the descriptor at path. A missing file is a recoverable
// condition, reported as found=false with no error: the service runs without
// provenance rather than refusing to start. A present but malformed file is an
// error.
func Load(path string) (Descriptor, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Descriptor{}, false, nil
		}
		return Descriptor{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read deploy descriptor")
	}

	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return Descriptor{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "malformed deploy descriptor")
	}
	if d.Address == "" {
		return Descriptor{}, false, dErrors.New(dErrors.CodeValidation, "deploy descriptor has no address")
	}
	return d, true, nil
}

// Write records a descriptor at path. Used by provisioning tooling; the
// service itself only reads.
func Write(path string, d Descriptor) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode deploy descriptor")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write deploy descriptor")
	}
	return nil
}
