package pool

import "errors"

// ErrBadPubkeyLength is returned by ParsePubkey when the decoded base58
// payload is not exactly PubkeySize bytes.
var ErrBadPubkeyLength = errors.New("pool: decoded pubkey is not 32 bytes")
