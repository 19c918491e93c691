package scan

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Cycle-level parse failures. A single malformed line is never fatal;
// these mean the whole scan output was unusable and the cycle must be
// skipped without mutating any device state.
var (
	ErrEmptyScan = errors.New("scan output is empty")
	ErrNoHeader  = errors.New("scan output has no recognizable header line")
)

// signalKind records which column header the parser matched, which
// determines how the numeric value is interpreted.
type signalKind int

const (
	signalDBm     signalKind = iota // RSSI column: negative dBm
	signalPercent                   // SIGNAL column: NetworkManager 0-100 strength
)

// layout describes the column offsets derived from a header line.
// Column positions vary across scan-tool versions, so they are located
// in the header rather than hard-coded.
type layout struct {
	rssiCol  int
	ssidCol  int // -1 when the header has no SSID column
	bssidCol int
	kind     signalKind
}

// Parse turns the raw output of one scan invocation into records, one
// per observed device. Malformed lines are skipped and counted in
// rejected. Duplicate MACs within the pass collapse to the strongest
// RSSI. An unusable blob (empty, or no header) returns a cycle-level
// error and no records.
func Parse(raw string, observedAt time.Time) (records []Record, rejected int, err error) {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")

	headerIdx, lay := findHeader(lines)
	if lay == nil {
		if strings.TrimSpace(raw) == "" {
			return nil, 0, ErrEmptyScan
		}
		return nil, 0, ErrNoHeader
	}

	// Strongest observation per MAC wins.
	byMAC := make(map[string]Record)
	var order []string

	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, ok := parseLine(line, lay, observedAt)
		if !ok {
			rejected++
			continue
		}

		prev, seen := byMAC[rec.MAC]
		if !seen {
			order = append(order, rec.MAC)
			byMAC[rec.MAC] = rec
		} else if rec.RSSI > prev.RSSI {
			byMAC[rec.MAC] = rec
		}
	}

	records = make([]Record, 0, len(order))
	for _, mac := range order {
		records = append(records, byMAC[mac])
	}
	return records, rejected, nil
}

// findHeader locates the header line and derives column offsets from
// it. A header must name a BSSID column and either an RSSI (dBm) or
// SIGNAL (percent) column.
func findHeader(lines []string) (int, *layout) {
	for i, line := range lines {
		bssidCol := strings.Index(line, "BSSID")
		if bssidCol < 0 {
			continue
		}

		if col := strings.Index(line, "RSSI"); col >= 0 {
			return i, &layout{rssiCol: col, ssidCol: ssidColumn(line), bssidCol: bssidCol, kind: signalDBm}
		}
		if col := strings.Index(line, "SIGNAL"); col >= 0 {
			return i, &layout{rssiCol: col, ssidCol: ssidColumn(line), bssidCol: bssidCol, kind: signalPercent}
		}
	}
	return -1, nil
}

// ssidColumn finds the SSID column offset, taking care not to match the
// "SSID" suffix inside "BSSID".
func ssidColumn(header string) int {
	for idx := 0; ; {
		col := strings.Index(header[idx:], "SSID")
		if col < 0 {
			return -1
		}
		col += idx
		if col == 0 || header[col-1] == ' ' || header[col-1] == '\t' {
			return col
		}
		idx = col + 1
	}
}

// parseLine extracts one record from a data line. The MAC must match
// the strict hardware-address pattern; the signal value is read from
// the field nearest the header-derived column and must land in the
// accepted dBm range after any percent conversion.
func parseLine(line string, lay *layout, observedAt time.Time) (Record, bool) {
	loc := macPattern.FindStringIndex(line)
	if loc == nil {
		return Record{}, false
	}
	mac, ok := NormalizeMAC(line[loc[0]:loc[1]])
	if !ok {
		return Record{}, false
	}

	// The signal column can sit flush against the MAC, so the search
	// window may overlap the MAC's last octet. Blank the MAC out before
	// looking for the numeric field so an octet like "33" is never
	// mistaken for a signal value.
	masked := line[:loc[0]] + strings.Repeat(" ", loc[1]-loc[0]) + line[loc[1]:]

	value, ok := intFieldNear(masked, lay.rssiCol)
	if !ok {
		return Record{}, false
	}

	rssi := value
	if lay.kind == signalPercent {
		if value < 0 || value > 100 {
			return Record{}, false
		}
		// NetworkManager reports strength as a 0-100 percentage; the
		// usual WEXT mapping recovers an approximate dBm.
		rssi = value/2 - 100
	}
	if !ValidRSSI(rssi) {
		return Record{}, false
	}

	return Record{
		MAC:        mac,
		RSSI:       rssi,
		SSID:       ssidField(line, lay),
		ObservedAt: observedAt,
	}, true
}

// intFieldNear parses the whitespace-delimited numeric field closest to
// the given column offset. Data rows are not always exactly aligned
// with the header, so a small window around the column is searched.
func intFieldNear(line string, col int) (int, bool) {
	if col >= len(line) {
		return 0, false
	}
	start := col - 2
	if start < 0 {
		start = 0
	}
	end := col + 7
	if end > len(line) {
		end = len(line)
	}

	for _, field := range strings.Fields(line[start:end]) {
		if v, err := strconv.Atoi(field); err == nil {
			return v, true
		}
	}
	return 0, false
}

// ssidField extracts a best-effort network name. SSIDs may contain
// spaces, so the value is taken as the trimmed span between the SSID
// column and the adjacent column boundary. Absence is fine; the record
// simply has no SSID.
func ssidField(line string, lay *layout) string {
	if lay.ssidCol < 0 || lay.ssidCol >= len(line) {
		return ""
	}

	if lay.ssidCol < lay.bssidCol {
		// airport layout: SSID is right-aligned ahead of the BSSID
		// column, so the value is everything before the MAC.
		end := lay.bssidCol
		if loc := macPattern.FindStringIndex(line); loc != nil && loc[0] < end {
			end = loc[0]
		}
		if end > len(line) {
			end = len(line)
		}
		return strings.TrimSpace(line[:end])
	}

	// nmcli layout: BSSID comes first and SSID runs until the signal
	// column.
	end := len(line)
	if lay.rssiCol > lay.ssidCol && lay.rssiCol <= len(line) {
		end = lay.rssiCol
	}
	return strings.TrimSpace(line[lay.ssidCol:end])
}
