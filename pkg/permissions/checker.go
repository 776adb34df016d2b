// Package permissions checks a caller's permission list against a required
// permission, with wildcard support.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "inventory.*")
//   - "resource.action" - Specific action (e.g., "inventory.read")
//   - "resource.subresource.action" - Nested permission (e.g., "inventory.fifo.override")
package permissions

import (
	"strings"
)

// Warehouse permissions.
const (
	InventoryRead    = "inventory.read"
	InventoryReceive = "inventory.receive"
	InventoryQC      = "inventory.qc"
	InventoryPutaway = "inventory.putaway"
	InventoryPick    = "inventory.pick"
	InventoryReturn  = "inventory.return"

	// FIFOOverride lets a picker take a newer unit while an older one is
	// still waiting. Every use is logged as an Override.
	FIFOOverride = "inventory.fifo.override"

	PicklistManage = "picklist.manage"
	PicklistIssue  = "picklist.issue"

	AuditManage = "audit.manage"
	AuditScan   = "audit.scan"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "inventory.*" matches "inventory.read", "inventory.fifo.override", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// Known lists the permissions the warehouse service checks.
var Known = []string{
	InventoryRead,
	InventoryReceive,
	InventoryQC,
	InventoryPutaway,
	InventoryPick,
	InventoryReturn,
	FIFOOverride,
	PicklistManage,
	PicklistIssue,
	AuditManage,
	AuditScan,
}

// IsValidPermission reports whether perm is a wildcard, a known permission,
// or at least shaped like resource.action.
func IsValidPermission(perm string) bool {
	if perm == "*" {
		return true
	}
	for _, p := range Known {
		if p == perm {
			return true
		}
	}
	return len(strings.Split(perm, ".")) >= 2
}
