// Package policy maps caller roles to the tools they may see and call.
package policy

import "inventrack/internal/domain"

// Tool names. The set is closed; adding a tool means adding it here and to
// the registry.
const (
	ToolSearchInventory      = "search_inventory"
	ToolGetStockMovements    = "get_stock_movements"
	ToolGetLowStockItems     = "get_low_stock_items"
	ToolGetAnalytics         = "get_analytics"
	ToolUpdateStockThreshold = "update_stock_threshold"
)

// readTools are visible to every role, in presentation order.
var readTools = []string{
	ToolSearchInventory,
	ToolGetStockMovements,
	ToolGetLowStockItems,
	ToolGetAnalytics,
}

// writeTools mutate data and require CanWrite.
var writeTools = []string{
	ToolUpdateStockThreshold,
}

// CanWrite reports whether role may run mutating operations.
func CanWrite(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleManager
}

// CanManageUsers reports whether role may change other users' roles.
func CanManageUsers(role domain.Role) bool {
	return role == domain.RoleAdmin
}

// IsWriteTool reports whether name is a mutating tool.
func IsWriteTool(name string) bool {
	for _, w := range writeTools {
		if w == name {
			return true
		}
	}
	return false
}

// Allowed reports whether role may see and call the named tool.
func Allowed(role domain.Role, name string) bool {
	if IsWriteTool(name) {
		return CanWrite(role)
	}
	for _, r := range readTools {
		if r == name {
			return true
		}
	}
	return false
}

// ToolNames returns the tool names visible to role, read tools first.
func ToolNames(role domain.Role) []string {
	out := append([]string(nil), readTools...)
	if CanWrite(role) {
		out = append(out, writeTools...)
	}
	return out
}
