package session

import "encoding/json"

// usageRecord matches the subset of fields an agent stream log's final
// JSON-lines record, or an external usage tool's JSON stdout, carries.
type usageRecord struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"total_cost_usd"`
	Usage        *struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// parseUsageLine extracts usage from a single JSON line. It accepts both a
// flat {input_tokens, output_tokens, total_cost_usd} shape (external usage
// tool output) and a nested {usage: {...}} shape (agent stream log final
// record), returning ok=false if neither is present.
func parseUsageLine(line string) (Usage, bool) {
	var rec usageRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return Usage{}, false
	}

	if rec.Usage != nil {
		return Usage{InputTokens: rec.Usage.InputTokens, OutputTokens: rec.Usage.OutputTokens, CostUSD: rec.CostUSD}, true
	}
	if rec.InputTokens == 0 && rec.OutputTokens == 0 && rec.CostUSD == 0 {
		return Usage{}, false
	}
	return Usage{InputTokens: rec.InputTokens, OutputTokens: rec.OutputTokens, CostUSD: rec.CostUSD}, true
}
