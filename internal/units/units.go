// Package units converts the raw integer units reported by the Lightning ranking
// source into the values persisted by the store.
package units

import "time"

// SatsPerBTC is the number of satoshis in one bitcoin.
const SatsPerBTC = 100_000_000

// SatsToBTC converts a satoshi amount to bitcoin.
func SatsToBTC(sats uint64) float64 {
	return float64(sats) / SatsPerBTC
}

// MaxEpochSeconds is 9999-12-31T23:59:59Z, the last instant with a four
// digit RFC 3339 year. The source decoder rejects anything later.
const MaxEpochSeconds = 253402300799

// EpochToTime converts Unix epoch seconds to a UTC timestamp with a zero
// sub-second component. seconds must not exceed MaxEpochSeconds.
func EpochToTime(seconds uint64) time.Time {
	return time.Unix(int64(seconds), 0).UTC()
}
