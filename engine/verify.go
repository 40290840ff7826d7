package engine

import (
	"fmt"
	"math"

	"crateclash/fair"
	"crateclash/models"
)

// VerifyProof recomputes a settled game from its audit record and confirms
// the stored outcome matches. Any external party holding the proof and the
// house configuration can run the same check.
func VerifyProof(cfg *Config, kind models.GameKind, params models.GameParams, proof *models.ProofRecord) error {
	if !fair.VerifyReveal(proof.RevealedSeed, proof.SeedCommitment) {
		return fmt.Errorf("revealed seed does not hash to commitment %s", proof.SeedCommitment)
	}
	if digest := proof.Ledger.Digest(); digest != proof.LedgerDigest {
		return fmt.Errorf("ledger digest mismatch: recomputed %s, stored %s", digest, proof.LedgerDigest)
	}

	derive := func(index int) float64 {
		return fair.DeriveFloat(proof.RevealedSeed, proof.GameID.String(), proof.LedgerDigest, index)
	}
	if roll := derive(0); math.Abs(roll-proof.RNGOutput) > 1e-12 {
		return fmt.Errorf("rng output mismatch: recomputed %v, stored %v", roll, proof.RNGOutput)
	}

	game := &models.Game{ID: proof.GameID, Kind: kind, Params: params}
	recomputed, err := Resolve(cfg, game, proof.Ledger, derive)
	if err != nil {
		return fmt.Errorf("failed to re-resolve game: %w", err)
	}

	if len(recomputed.WinnerIDs) != len(proof.Outcome.WinnerIDs) {
		return fmt.Errorf("winner count mismatch: recomputed %d, stored %d", len(recomputed.WinnerIDs), len(proof.Outcome.WinnerIDs))
	}
	for i, id := range recomputed.WinnerIDs {
		if proof.Outcome.WinnerIDs[i] != id {
			return fmt.Errorf("winner mismatch at rank %d: recomputed %d, stored %d", i, id, proof.Outcome.WinnerIDs[i])
		}
	}
	if len(recomputed.Payouts) != len(proof.Outcome.Payouts) {
		return fmt.Errorf("payout entry count mismatch")
	}
	for id, amount := range recomputed.Payouts {
		if stored, ok := proof.Outcome.Payouts[id]; !ok || stored != amount {
			return fmt.Errorf("payout mismatch for participant %d: recomputed %d, stored %d", id, amount, stored)
		}
	}
	return nil
}
