// Package gating decides whether an optimization request may proceed.
//
// The phase is recomputed from ledger counts on every request and is never
// stored. Two independent signals are counted, the visitor's email and the
// device (IP or fingerprint), and the larger one decides, so switching only
// one of them does not reset the allowance.
package gating

import (
	"context"
	"fmt"

	"leadgate/internal/models"
)

// Phase is the gating state derived from prior usage.
type Phase string

const (
	Phase1 Phase = "phase1"
	Phase2 Phase = "phase2"
	Locked Phase = "locked"
)

// DefaultFreeUses is the number of optimizations allowed before the lock.
const DefaultFreeUses = 2

// Counter is the read side of the usage ledger.
type Counter interface {
	CountByEmail(ctx context.Context, email string) (int, error)
	CountByIdentity(ctx context.Context, ip, fingerprint string) (int, error)
}

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed bool
	Phase   Phase
	// UsageCount is max(identityCount, emailCount) before this request.
	UsageCount    int
	EmailCount    int
	IdentityCount int
}

// Ordinal is this request's position in the visitor's usage, starting at 1.
func (d Decision) Ordinal() int {
	return d.UsageCount + 1
}

// ResolvePhase maps a prior usage count to a phase. It is total over all ints;
// negative counts are treated as zero.
func ResolvePhase(usageCount, freeUses int) Phase {
	switch {
	case usageCount >= freeUses:
		return Locked
	case usageCount <= 0:
		return Phase1
	default:
		return Phase2
	}
}

// Policy evaluates identities against the ledger.
type Policy struct {
	counter  Counter
	freeUses int
	bypass   bool
}

// NewPolicy creates a policy. bypass disables the lock and must only come from
// operator configuration.
func NewPolicy(counter Counter, freeUses int, bypass bool) *Policy {
	if freeUses < 1 {
		freeUses = DefaultFreeUses
	}
	return &Policy{counter: counter, freeUses: freeUses, bypass: bypass}
}

// Bypass reports whether the lock is disabled.
func (p *Policy) Bypass() bool {
	return p.bypass
}

// Evaluate counts prior usage for id and decides. With no identity signal at
// all the counts are zero and the request is treated as a first use.
func (p *Policy) Evaluate(ctx context.Context, id models.Identity) (Decision, error) {
	emailCount, err := p.counter.CountByEmail(ctx, id.Email)
	if err != nil {
		return Decision{}, fmt.Errorf("count by email: %w", err)
	}

	identityCount, err := p.counter.CountByIdentity(ctx, id.IPAddress, id.Fingerprint)
	if err != nil {
		return Decision{}, fmt.Errorf("count by identity: %w", err)
	}

	return Decide(identityCount, emailCount, p.freeUses, p.bypass), nil
}

// Decide is the pure decision over the two counts.
func Decide(identityCount, emailCount, freeUses int, bypass bool) Decision {
	usage := max(identityCount, emailCount, 0)
	phase := ResolvePhase(usage, freeUses)

	d := Decision{
		Allowed:       true,
		Phase:         phase,
		UsageCount:    usage,
		EmailCount:    emailCount,
		IdentityCount: identityCount,
	}

	if phase == Locked {
		if !bypass {
			d.Allowed = false
			return d
		}
		// Bypassed requests are reported as repeat users.
		d.Phase = Phase2
	}
	return d
}
