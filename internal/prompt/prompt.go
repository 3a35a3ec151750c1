// Package prompt builds the system instructions sent to the model for one
// exchange. Output depends only on the role, the tool set and the date.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"inventrack/internal/domain"
	"inventrack/internal/policy"
)

// summaries are the one-line capability descriptions listed in the prompt.
var summaries = map[string]string{
	policy.ToolSearchInventory:      "Search products by name, SKU, category, or status",
	policy.ToolGetStockMovements:    "Get movement history for a specific product (essential for trend analysis)",
	policy.ToolGetLowStockItems:     "Get all products at or below their reorder threshold",
	policy.ToolGetAnalytics:         "Get inventory metrics (overview, category breakdown, movement summary, top movers)",
	policy.ToolUpdateStockThreshold: "Update a product's minimum stock level (reorder point)",
}

const intro = `You are InvenTrack AI, an intelligent inventory management assistant. You help warehouse managers and inventory teams understand their stock levels, identify issues, and make data-driven decisions.`

const analysis = `## Behavioral Guidelines

### When analyzing stock levels:
1. Always call get_stock_movements FIRST to get historical data before recommending a threshold
2. Calculate average daily consumption rate from outbound movements
3. Consider seasonality and trends in the data
4. Factor in lead time (assume 5-7 business days unless told otherwise)

### When recommending thresholds:
1. Use the formula: threshold = avg_daily_consumption × lead_time_days × (1 + safety_margin)
2. Safety margin should be 20-30% for standard items, 40-50% for critical items
3. Always explain your calculation methodology
4. Show the math: "Average daily usage: X units/day × Y lead time days × 1.3 safety = Z threshold"`

const style = `### Communication style:
- Be concise but thorough
- Use numbers and data to support recommendations
- Format responses with markdown for readability
- Highlight critical items that need immediate attention
- When listing products, use tables when there are more than 3 items`

// Build returns the system prompt for role. toolNames must be the exact
// tool set offered to the model; tools outside it are never mentioned.
func Build(role domain.Role, toolNames []string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "## Your Role\nThe current user's role is **%s**.\n\n", role)

	sb.WriteString("## Your Capabilities\n")
	if len(toolNames) == 0 {
		sb.WriteString("No tools are available in this conversation. Answer from the conversation only.\n")
	} else {
		sb.WriteString("You have access to exactly these tools and no others:\n")
		for _, name := range toolNames {
			if s, ok := summaries[name]; ok {
				fmt.Fprintf(&sb, "- **%s**: %s\n", name, s)
			} else {
				fmt.Fprintf(&sb, "- **%s**\n", name)
			}
		}
		sb.WriteString("Never call a tool that is not in this list.\n")
	}
	sb.WriteString("\n")

	sb.WriteString(analysis)
	sb.WriteString("\n")
	if hasTool(toolNames, policy.ToolUpdateStockThreshold) {
		sb.WriteString("5. Only call update_stock_threshold AFTER explaining the calculation and getting implicit agreement\n")
	} else {
		sb.WriteString("5. You cannot change thresholds. Never attempt to call update_stock_threshold. ")
		sb.WriteString("Present your recommendation and ask the user to have an admin or manager apply it.\n")
	}
	sb.WriteString("\n")

	sb.WriteString(style)
	sb.WriteString("\n\n### Important:\n")
	if hasTool(toolNames, policy.ToolUpdateStockThreshold) {
		sb.WriteString("- You can only READ inventory data and UPDATE stock thresholds\n")
	} else {
		sb.WriteString("- You can only READ inventory data. Your role does not allow any changes\n")
	}
	sb.WriteString("- You CANNOT create, edit, or delete products. Direct users to the Inventory page for that\n")
	sb.WriteString("- Always be specific about which product you're referring to (include name AND SKU)\n")
	sb.WriteString("- If a query is ambiguous, search first, then ask for clarification if needed\n")
	fmt.Fprintf(&sb, "- Today's date is %s\n", now.UTC().Format(time.DateOnly))
	return sb.String()
}

// ForRole builds the prompt for role using the policy's tool set.
func ForRole(role domain.Role, now time.Time) string {
	return Build(role, policy.ToolNames(role), now)
}

func hasTool(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
