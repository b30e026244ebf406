// Package scanner classifies a raw barcode scan against the three fixed
// grammars spec.md §6 names: legacy DUT label, DUT-with-option label, and
// PSU label. Grounded on the teacher's approach to fixed-shape wire
// parsing — compile every pattern once at package init, never per call.
package scanner

import (
	"fmt"
	"regexp"

	"github.com/fenwick-labs/stationrt/internal/configstore"
)

var (
	legacyDUT  = regexp.MustCompile(`^\[DUT#\|(\d{5}):(\d{8})\]$`)
	dutWithOpt = regexp.MustCompile(`^\[DUT\|(\d{5}):(\d{8}):(.{12})\]$`)
	psuLabel   = regexp.MustCompile(`^\[PSU#\|(\w{4}):(\d{3})-(\d{4})\]$`)
)

// Kind discriminates what a scan matched: a DUT label (either DUT grammar)
// or a PSU label, plus Unknown for anything that matches none of them.
type Kind int

const (
	Unknown Kind = iota
	DUTScan
	PSUScan
)

func (k Kind) String() string {
	switch k {
	case DUTScan:
		return "dut"
	case PSUScan:
		return "psu"
	default:
		return "unknown"
	}
}

// Scan is the classification result ScanMessage dispatches to: either a
// DUT identity (Option empty for the legacy format), a PSU label, or
// Unknown with the raw text preserved for the UI to display.
type Scan struct {
	Kind Kind
	DUT  configstore.DUT
	PSU  string
	Raw  string
}

// ErrUnrecognized is not returned by Classify, which never fails and
// reports a non-matching scan as an Unknown-kind Scan; callers that want a
// hard failure instead of a soft "display as unknown" can return it
// themselves. Classify matches spec.md §6's scanner being a dispatch, not a
// validator.
var ErrUnrecognized = fmt.Errorf("scanner: raw scan matched no known grammar")

// Classify applies the three fixed grammars to raw, in the order spec.md
// §6 lists them, and returns the first match.
func Classify(raw string) Scan {
	if m := legacyDUT.FindStringSubmatch(raw); m != nil {
		return Scan{Kind: DUTScan, Raw: raw, DUT: configstore.DUT{MN: atoi64(m[1]), SN: atoi64(m[2])}}
	}
	if m := dutWithOpt.FindStringSubmatch(raw); m != nil {
		return Scan{Kind: DUTScan, Raw: raw, DUT: configstore.DUT{MN: atoi64(m[1]), SN: atoi64(m[2]), Option: m[3]}}
	}
	if m := psuLabel.FindStringSubmatch(raw); m != nil {
		return Scan{Kind: PSUScan, Raw: raw, PSU: fmt.Sprintf("%s:%s-%s", m[1], m[2], m[3])}
	}
	return Scan{Kind: Unknown, Raw: raw}
}

func atoi64(s string) int64 {
	var n int64
	for _, c := range s {
		n = n*10 + int64(c-'0')
	}
	return n
}
