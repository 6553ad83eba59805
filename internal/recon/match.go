package recon

import "sort"

// Classification is the outcome of comparing the records behind one order
// reference.
type Classification struct {
	OrderRef        string
	InternalMinor   *int64
	ExternalMinor   *int64
	DifferenceMinor int64
	Status          MatchStatus
}

// MatchRecords compares the internal ledger view against an external
// statement, keyed by (orderRef, amount). Classification priority: exact
// match, missing external, missing internal, amount mismatch, duplicate.
// The function is pure; persisting items is the service's job.
func MatchRecords(internal []Record, external []Record) []Classification {
	internalByRef := make(map[string][]Record)
	for _, record := range internal {
		internalByRef[record.OrderRef] = append(internalByRef[record.OrderRef], record)
	}
	externalByRef := make(map[string][]Record)
	for _, record := range external {
		externalByRef[record.OrderRef] = append(externalByRef[record.OrderRef], record)
	}

	refs := make([]string, 0, len(internalByRef)+len(externalByRef))
	seen := make(map[string]bool)
	for ref := range internalByRef {
		refs = append(refs, ref)
		seen[ref] = true
	}
	for ref := range externalByRef {
		if !seen[ref] {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)

	classifications := make([]Classification, 0, len(refs))
	for _, ref := range refs {
		internals := internalByRef[ref]
		externals := externalByRef[ref]
		switch {
		case len(externals) == 0:
			for _, record := range internals {
				amount := record.AmountMinor
				classifications = append(classifications, Classification{
					OrderRef:        ref,
					InternalMinor:   &amount,
					DifferenceMinor: amount,
					Status:          StatusMissingExternal,
				})
			}
		case len(internals) == 0:
			for _, record := range externals {
				amount := record.AmountMinor
				classifications = append(classifications, Classification{
					OrderRef:        ref,
					ExternalMinor:   &amount,
					DifferenceMinor: -amount,
					Status:          StatusMissingInternal,
				})
			}
		case len(internals) > 1:
			var internalTotal int64
			for _, record := range internals {
				internalTotal += record.AmountMinor
			}
			externalAmount := externals[0].AmountMinor
			classifications = append(classifications, Classification{
				OrderRef:        ref,
				InternalMinor:   &internalTotal,
				ExternalMinor:   &externalAmount,
				DifferenceMinor: internalTotal - externalAmount,
				Status:          StatusDuplicate,
			})
		default:
			internalAmount := internals[0].AmountMinor
			externalAmount := externals[0].AmountMinor
			status := StatusMatched
			if internalAmount != externalAmount {
				status = StatusAmountMismatch
			}
			classifications = append(classifications, Classification{
				OrderRef:        ref,
				InternalMinor:   &internalAmount,
				ExternalMinor:   &externalAmount,
				DifferenceMinor: internalAmount - externalAmount,
				Status:          status,
			})
		}
	}
	return classifications
}
