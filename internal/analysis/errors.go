package analysis

import (
	"fmt"

	"github.com/secbitchris/optionscalculator/internal/pricing"
)

// invalidInputf wraps pricing.ErrInvalidInput with the offending field name,
// so request-level and model-level validation failures share one error kind.
func invalidInputf(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", pricing.ErrInvalidInput, field, fmt.Sprintf(format, args...))
}

// NoLiquidContractsError is returned when real-data-only mode eliminates
// every strike in the grid for the requested expiry. AvailableDTEs lists the
// expiries that do carry exchange-reported data so the caller can retry.
type NoLiquidContractsError struct {
	Underlying    string
	DTE           int
	AvailableDTEs []int
}

func (e *NoLiquidContractsError) Error() string {
	if len(e.AvailableDTEs) == 0 {
		return fmt.Sprintf("no contracts satisfy real-data-only filter for %s at %d DTE (no expiries with real data)",
			e.Underlying, e.DTE)
	}
	return fmt.Sprintf("no contracts satisfy real-data-only filter for %s at %d DTE (expiries with real data: %v)",
		e.Underlying, e.DTE, e.AvailableDTEs)
}
