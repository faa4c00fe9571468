// Ganymede is a policy enforcement and balance accounting engine for
// wrapped tokens.
//
// It governs transfers, minting, burning, and delegation of wrapped
// tokens through per-collection policies: declarative boolean rule
// trees, allow/deny-list rulesets, dynamic price-dependent royalties,
// and a per-mint lock state machine.
//
// Usage:
//
//	# Validate policy and rule documents
//	ganymede validate --dir policies/
//
//	# Evaluate a royalty schedule at a price
//	ganymede royalty --file schedule.yaml --price 1500000
//
//	# Query the audit decision log
//	ganymede audit --db data/audit.db --result rejected
//
//	# Show version information
//	ganymede version
package main

func main() {
	Execute()
}
