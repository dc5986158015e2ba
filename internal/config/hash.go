package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bandedctl/harness/internal/harnesserr"
)

// BootstrapSentinel is the placeholder value a freshly scaffolded config
// carries in seeds.physics_hash before the real hash has been filled in.
const BootstrapSentinel = "<FILL_ME>"

// hashPrefixLen is the number of hex characters kept from the SHA-256
// digest; both physics and geometry hashes use this length.
const hashPrefixLen = 12

// canon serializes v with sorted keys and no whitespace — Go's
// encoding/json already emits map keys in sorted order and produces no
// extraneous whitespace via Marshal, so this is a direct analog to
// json.dumps(sort_keys=True, separators=(",", ":")).
func canon(v any) ([]byte, error) {
	return json.Marshal(v)
}

func hashPrefix(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:hashPrefixLen]
}

// ComputePhysicsHash returns the 12-character SHA-256 prefix of the
// canonical serialization of physics alone, or of {physics, geometry}
// when a non-empty geometryHash is supplied.
func ComputePhysicsHash(physics PhysicsCfg, geometryHash string) (string, error) {
	physicsMap := map[string]any{
		"dt":             physics.Dt,
		"substeps":       physics.Substeps,
		"solver":         physics.Solver,
		"tol":            physics.Tol,
		"contact_margin": physics.ContactMargin,
	}

	var payload any = physicsMap
	if geometryHash != "" {
		payload = map[string]any{
			"physics":  physicsMap,
			"geometry": geometryHash,
		}
	}

	data, err := canon(payload)
	if err != nil {
		return "", err
	}
	return hashPrefix(data), nil
}

// ComputeGeometryHash returns the 12-character SHA-256 prefix of the
// concatenated (filename, bytes) pairs of every *.xml file under
// assetsDir, iterated in sorted filename order. Returns ("", false) if
// the directory is empty or absent — geometry hashing is optional.
func ComputeGeometryHash(assetsDir string) (string, bool, error) {
	entries, err := os.ReadDir(assetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".xml") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", false, nil
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(assetsDir, name))
		if err != nil {
			return "", false, err
		}
		h.Write([]byte(name))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))[:hashPrefixLen], true, nil
}

// CheckPhysicsHash compares seeds.physics_hash against the freshly
// computed value. It returns nil when they agree, nil when the stored
// value is BootstrapSentinel and strict is false, and a
// *harnesserr.HashMismatch otherwise (including the strict-mode
// sentinel case, per §6.4's validator exit-code table).
func CheckPhysicsHash(cfg *SystemConfig, geometryHash string, strict bool) error {
	computed, err := ComputePhysicsHash(cfg.Physics, geometryHash)
	if err != nil {
		return err
	}

	if cfg.Seeds.PhysicsHash == BootstrapSentinel {
		if strict {
			return &harnesserr.HashMismatch{Stored: BootstrapSentinel, Computed: computed}
		}
		return nil
	}

	if cfg.Seeds.PhysicsHash != computed {
		return &harnesserr.HashMismatch{Stored: cfg.Seeds.PhysicsHash, Computed: computed}
	}
	return nil
}
