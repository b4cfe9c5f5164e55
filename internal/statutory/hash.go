package statutory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// hashEnvelope fixes the serialization the content hash covers. Field order
// is the struct order, so the byte stream is deterministic for identical
// inputs.
type hashEnvelope struct {
	PeriodStart   string              `json:"period_start"`
	PeriodEnd     string              `json:"period_end"`
	ProfitLoss    ProfitLossReport    `json:"profit_loss"`
	TaxAdjustment TaxAdjustmentReport `json:"tax_adjustment"`
	BalanceSheet  BalanceSheetReport  `json:"balance_sheet"`
}

// ComputeContentHash returns the SHA-256 hex digest over the canonical
// serialization of the period bounds and the three sub-reports. The digest is
// a pure function of those inputs: any figure change changes the hash.
func ComputeContentHash(periodStart, periodEnd time.Time, pl ProfitLossReport, tax TaxAdjustmentReport, bs BalanceSheetReport) (string, error) {
	envelope := hashEnvelope{
		PeriodStart:   periodStart.UTC().Format("2006-01-02"),
		PeriodEnd:     periodEnd.UTC().Format("2006-01-02"),
		ProfitLoss:    pl,
		TaxAdjustment: tax,
		BalanceSheet:  bs,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("statutory: hash serialization: %w", err)
	}
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:]), nil
}
