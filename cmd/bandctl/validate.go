package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bandedctl/harness/internal/config"
	"github.com/bandedctl/harness/internal/harnesserr"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml> <schema.json>",
	Args:  cobra.ExactArgs(2),
	Short: "Validate a system-slice config and its physics hash",
	Long: `validate loads and validates the config, then checks seeds.physics_hash
against the freshly computed physics hash.

Exit codes: 0 on success (including bootstrap with the sentinel hash),
1 on schema failure, hash mismatch, I/O error, or strict-mode sentinel.

The schema.json argument is accepted for interface compatibility; field
presence and range checks are enforced by the config loader's own
Validate pass rather than a separate JSON-Schema evaluator (see
DESIGN.md on this decision).`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("strict", false, "fail if seeds.physics_hash is the bootstrap sentinel")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	// schemaPath := args[1] — accepted, not separately evaluated; see Long above.

	strict, _ := cmd.Flags().GetBool("strict")

	config.ResetCache()
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("[bandctl] SCHEMA FAIL: %v\n", err)
		return err
	}
	fmt.Println("[bandctl] schema: OK")

	computed, err := config.ComputePhysicsHash(cfg.Physics, "")
	if err != nil {
		fmt.Printf("[bandctl] ERROR: %v\n", err)
		return err
	}

	if cfg.Seeds.PhysicsHash == config.BootstrapSentinel {
		fmt.Printf("[bandctl] computed physics_hash = %s\n", computed)
		if strict {
			fmt.Println("[bandctl] STRICT mode: fill seeds.physics_hash and re-run.")
			return &harnesserr.HashMismatch{Stored: config.BootstrapSentinel, Computed: computed}
		}
		fmt.Println("[bandctl] non-strict bootstrapping: pass (will enforce once filled).")
		return nil
	}

	if err := config.CheckPhysicsHash(cfg, "", strict); err != nil {
		fmt.Printf("[bandctl] %v\n", err)
		return err
	}

	fmt.Println("[bandctl] physics_hash: OK")
	fmt.Println("[bandctl] VALIDATION OK")
	return nil
}
