package valuation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/aristath/beam/internal/domain"
)

// CompositionKey identifies the inputs a stored daily total was computed
// from: the mode, the sampling interval and the contributing holdings.
// Totals stored under another key belong to another portfolio and must not
// be served.
func CompositionKey(mode Mode, interval domain.Interval, holdings []domain.Holding) string {
	lines := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if !h.Contributes() {
			continue
		}
		lines = append(lines, strings.Join([]string{
			strings.ToUpper(strings.TrimSpace(h.Ticker)),
			strconv.FormatFloat(h.Quantity, 'g', -1, 64),
			strconv.FormatFloat(h.AcquisitionPrice, 'g', -1, 64),
			domain.NormalizeCurrency(h.Currency),
			strconv.FormatFloat(h.TargetLT, 'g', -1, 64),
			strconv.FormatFloat(h.Factor(), 'g', -1, 64),
		}, "|"))
	}
	sort.Strings(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return string(mode) + ":" + string(interval) + ":" + hex.EncodeToString(sum[:8])
}
