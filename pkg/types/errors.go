package types

import "errors"

// ErrMalformedRecord is returned when a byte slice presented for decoding
// does not have the exact width the record layout requires, or when a reply
// payload violates the protocol's framing (partial records, out-of-order
// create-result indices). Check with errors.Is.
var ErrMalformedRecord = errors.New("ledgerclient: malformed record")
