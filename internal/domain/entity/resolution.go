package entity

import (
	"github.com/stackbill/stackbill/internal/types"
)

// Resolution is the outcome of resolving a key against an entity's chain.
type Resolution struct {
	Decision types.PermissionDecision
	// Row is the matrix row that decided, nil when undefined.
	Row *PermissionRow
}

// ResolveDecision resolves (key, scope) for an entity given the matrix rows
// of its whole chain (self plus ancestors). chainIDs is root first and must
// include the entity itself last.
//
// A locked row on the shallowest (closest to root) entity that has one is
// authoritative regardless of anything deeper. Otherwise the first defined
// row walking from the entity up to the root wins. Scoped rows take
// precedence over global rows on the same entity.
func ResolveDecision(chainIDs []string, rows []*PermissionRow, key string, scope types.PermissionScope) Resolution {
	byEntity := make(map[string][]*PermissionRow, len(rows))
	for _, row := range rows {
		if row.Key != key {
			continue
		}
		if row.Scope != scope && row.Scope != types.PermissionScopeGlobal {
			continue
		}
		byEntity[row.EntityID] = append(byEntity[row.EntityID], row)
	}

	// Root-downward pass: the shallowest locked row is the ratchet.
	for _, id := range chainIDs {
		if row := pickRow(byEntity[id], scope); row != nil && row.Locked {
			return Resolution{Decision: decisionOf(row), Row: row}
		}
	}

	// Entity-upward pass: first defined row wins.
	for i := len(chainIDs) - 1; i >= 0; i-- {
		if row := pickRow(byEntity[chainIDs[i]], scope); row != nil {
			return Resolution{Decision: decisionOf(row), Row: row}
		}
	}

	return Resolution{Decision: types.PermissionDecisionUndefined}
}

// pickRow prefers an exact-scope row over a global one.
func pickRow(rows []*PermissionRow, scope types.PermissionScope) *PermissionRow {
	var global *PermissionRow
	for _, row := range rows {
		if row.Scope == scope && scope != types.PermissionScopeGlobal {
			return row
		}
		if row.Scope == types.PermissionScopeGlobal && global == nil {
			global = row
		}
	}
	return global
}

func decisionOf(row *PermissionRow) types.PermissionDecision {
	if row.Allowed {
		return types.PermissionDecisionAllowed
	}
	return types.PermissionDecisionDenied
}
