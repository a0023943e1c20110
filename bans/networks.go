package bans

import "net/netip"

// Candidate aggregation levels, narrowest first. Bans are stored at network
// granularity, so a single address has to be checked against every level
// the system recognizes. The order is load-bearing: resolution walks these
// levels front to back and the first cached answer wins, which is what
// gives narrower bans precedence over wider ones.
var (
	v4CandidateBits = []int{32, 24}
	v6CandidateBits = []int{128, 64, 48, 32}
)

// Candidates returns the ordered list of networks a banned address could be
// stored under: the address's own point network first, then each wider
// supernet. IPv4-mapped IPv6 addresses are unmapped first so both notations
// of the same address produce the same candidates.
func Candidates(addr netip.Addr) []netip.Prefix {
	addr = addr.Unmap()

	bits := v4CandidateBits
	if addr.Is6() {
		bits = v6CandidateBits
	}

	out := make([]netip.Prefix, 0, len(bits))
	for _, b := range bits {
		p, err := addr.Prefix(b)
		if err != nil {
			// Unreachable for a valid addr and the fixed bit widths above.
			continue
		}
		out = append(out, p)
	}
	return out
}
