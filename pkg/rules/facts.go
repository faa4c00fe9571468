package rules

// Facts is the fact set a rule tree is evaluated against: the runtime
// attributes of an attempted operation, extracted by the transfer guard
// before evaluation. All addresses are carried as strings so rules can
// compare them without knowing the host key format.
type Facts struct {
	// Action is the operation kind ("transfer", "lock", "unlock",
	// "approve", "revoke", "burn", "wrap", "close", "mint_to").
	Action string

	// ProgramIDs is the full list of programs invoked in the enclosing
	// atomic batch, in order.
	ProgramIDs []string

	// Mint is the mint the operation targets.
	Mint string

	// Participants.
	Payer string
	From  string
	To    string

	// Metadata is the mint's metadata, if resolved.
	Metadata *MetadataFacts

	// MintState is the mint's lock/transfer bookkeeping, if resolved.
	MintState *MintStateFacts

	// Memo carries the batch's last memo operation, if any.
	LastMemoSigner string
	LastMemoData   string

	// Price is the observed sale price in native base units, available
	// at post-transfer reconciliation.
	Price uint64

	// RoyaltyFeeBp is the computed royalty in basis points, available at
	// post-transfer reconciliation.
	RoyaltyFeeBp uint64
}

// MetadataFacts mirrors the mint metadata fields rules may reference.
type MetadataFacts struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint64
	CollectionKey        string
	CollectionVerified   bool
	Creators             []string
}

// MintStateFacts mirrors the mint state fields rules may reference.
type MintStateFacts struct {
	LockedBy          string
	TransferredCount  uint64
	LastTransferredAt int64
	LastApprovedAt    int64
}

// Resolve looks up a fact by its dotted field path. The second return is
// false when the field is unknown or its parent object is absent; the
// evaluator treats that as the "absent" sentinel.
func (f *Facts) Resolve(field string) (interface{}, bool) {
	if f == nil {
		return nil, false
	}

	switch field {
	case "action":
		return f.Action, true
	case "program_ids":
		return f.ProgramIDs, true
	case "mint":
		return f.Mint, true
	case "payer":
		return optional(f.Payer)
	case "from":
		return optional(f.From)
	case "to":
		return optional(f.To)
	case "last_memo.signer":
		return optional(f.LastMemoSigner)
	case "last_memo.data":
		return optional(f.LastMemoData)
	case "price":
		return f.Price, true
	case "royalty_fee_bp":
		return f.RoyaltyFeeBp, true
	}

	if f.Metadata != nil {
		switch field {
		case "metadata.name":
			return f.Metadata.Name, true
		case "metadata.symbol":
			return f.Metadata.Symbol, true
		case "metadata.uri":
			return f.Metadata.URI, true
		case "metadata.seller_fee_basis_points":
			return f.Metadata.SellerFeeBasisPoints, true
		case "metadata.collection.key":
			return f.Metadata.CollectionKey, true
		case "metadata.collection.verified":
			return f.Metadata.CollectionVerified, true
		case "metadata.creators":
			return f.Metadata.Creators, true
		}
	}

	if f.MintState != nil {
		switch field {
		case "mint_state.locked_by":
			return optional(f.MintState.LockedBy)
		case "mint_state.transferred_count":
			return f.MintState.TransferredCount, true
		case "mint_state.last_transferred_at":
			return f.MintState.LastTransferredAt, true
		case "mint_state.last_approved_at":
			return f.MintState.LastApprovedAt, true
		}
	}

	return nil, false
}

// optional maps the empty string to the absent sentinel.
func optional(s string) (interface{}, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}
