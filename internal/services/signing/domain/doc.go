// Package domain holds the signing workflow model: requests, chains,
// levels, signers, and the pure decision logic for signer activation and
// level completion. Side effects (persistence, notifications, audit)
// live in the engine and storage packages; everything here is
// deterministic given its inputs.
package domain
