package store

// RecordCost mirrors one day/category aggregate into the cost_ledger
// table, in addition to the canonical JSON file internal/cost owns — the
// file remains authoritative on load, per SPEC_FULL.md §3.
func (s *Store) RecordCost(date, category string, inputTokens, outputTokens, calls int) error {
	_, err := s.db.Exec(`
		INSERT INTO cost_ledger (date, category, input_tokens, output_tokens, calls)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, category) DO UPDATE SET
			input_tokens = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens,
			calls = calls + excluded.calls
	`, date, category, inputTokens, outputTokens, calls)
	return err
}

// CostLedgerRow is one aggregated day/category row.
type CostLedgerRow struct {
	Date         string
	Category     string
	InputTokens  int
	OutputTokens int
	Calls        int
}

// CostLedgerSince returns every ledger row with date >= since (inclusive),
// in storage order.
func (s *Store) CostLedgerSince(since string) ([]CostLedgerRow, error) {
	rows, err := s.db.Query(`SELECT date, category, input_tokens, output_tokens, calls FROM cost_ledger WHERE date >= ?`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CostLedgerRow
	for rows.Next() {
		var r CostLedgerRow
		if err := rows.Scan(&r.Date, &r.Category, &r.InputTokens, &r.OutputTokens, &r.Calls); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
