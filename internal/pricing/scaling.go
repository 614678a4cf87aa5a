package pricing

import "fmt"

// GreeksScaling selects the time basis Greeks are reported in. Daily is the
// native output of Price; the other scalings are derived from it.
type GreeksScaling string

const (
	ScalingDaily     GreeksScaling = "daily"
	ScalingPerMinute GreeksScaling = "per_minute"
	ScalingAnnual    GreeksScaling = "annual"
)

// Scalings lists every supported scaling, in display order.
var Scalings = []GreeksScaling{ScalingDaily, ScalingPerMinute, ScalingAnnual}

// ScaleGreeks converts a daily-basis Quote to the requested scaling.
//
//   - per_minute: theta spread over the 1440 minutes of a calendar day,
//     rho per basis point instead of per 100bp
//   - annual: theta over 365 days, vega per full vol unit instead of per point
//
// Each scaling rescales only the Greeks its consumers read on a different
// basis: per_minute feeds spreadsheet-style views that quote rho per bp,
// annual keeps rho per 100bp. Existing consumers calibrate against these
// exact bases, so the table is a compatibility contract, not a symmetry.
func ScaleGreeks(q Quote, scaling GreeksScaling) (Quote, error) {
	switch scaling {
	case ScalingDaily:
		return q, nil
	case ScalingPerMinute:
		q.Theta /= 24 * 60
		q.Rho /= 100
		return q, nil
	case ScalingAnnual:
		q.Theta *= 365
		q.Vega *= 100
		return q, nil
	default:
		return Quote{}, fmt.Errorf("%w: unknown greeks scaling %q", ErrInvalidInput, scaling)
	}
}
