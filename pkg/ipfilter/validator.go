package ipfilter

import (
	"context"
	"log/slog"
	"net/http"
)

// FailurePolicy decides the outcome when the source ranges can't be retrieved.
type FailurePolicy int

const (
	FailClosed FailurePolicy = iota
	FailOpen
)

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "fail-open"
	}
	return "fail-closed"
}

// Return FailOpen when failOpen is set, FailClosed otherwise
func PolicyFromBool(failOpen bool) FailurePolicy {
	if failOpen {
		return FailOpen
	}
	return FailClosed
}

// RangeSource provides the list of allowed CIDRs.
type RangeSource interface {
	Ranges(ctx context.Context) ([]string, error)
}

// Validator checks whether a caller address belongs to the published webhook ranges.
type Validator struct {
	ranges   RangeSource
	resolver ClientIPResolver
	policy   FailurePolicy
}

func NewValidator(ranges RangeSource, resolver ClientIPResolver, policy FailurePolicy) *Validator {
	return &Validator{
		ranges:   ranges,
		resolver: resolver,
		policy:   policy,
	}
}

// IsAllowed reports whether ip is within one of the ranges.
// When the ranges are unavailable the configured FailurePolicy decides.
func (v *Validator) IsAllowed(ctx context.Context, ip string) bool {
	if ip == "" {
		return false
	}

	ranges, err := v.ranges.Ranges(ctx)
	if err != nil && ctx.Err() != nil {
		// The caller is gone, nobody is waiting for the decision
		slog.Debug("Webhook source validation aborted", slog.String("ip", ip), slog.String("err", err.Error()))
		return false
	}
	if err != nil {
		slog.Error("Unable to validate webhook source address",
			slog.String("ip", ip),
			slog.String("policy", v.policy.String()),
			slog.String("err", err.Error()),
		)
		return v.policy == FailOpen
	}

	for _, cidr := range ranges {
		if MatchesCIDR(ip, cidr) {
			return true
		}
	}
	slog.Debug("Webhook source address not in allowed ranges", slog.String("ip", ip), slog.Int("ranges", len(ranges)))
	return false
}

// IsRequestFromAllowedSource resolves the caller address of req and validates it.
func (v *Validator) IsRequestFromAllowedSource(ctx context.Context, req *http.Request) bool {
	return v.IsAllowed(ctx, v.resolver.Resolve(req))
}

// Return the resolver used for requests
func (v *Validator) Resolver() ClientIPResolver {
	return v.resolver
}
