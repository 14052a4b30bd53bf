package rdt

import (
	"bytes"
	"crypto/md5"
	"strconv"
)

// checksumSize is the width of the digest embedded in a DATA header.
const checksumSize = md5.Size // 16

// checksum reproduces the original peer's quirky pre-image verbatim: the
// textual decimal representations of seq, sendTS and length concatenated
// with the raw payload bytes, MD5-digested. This is not a canonical binary
// layout — it is the wire contract, preserved for compatibility. The
// timestamp is written in plain decimal notation with its shortest
// round-trip digits, and whole values keep a trailing ".0", the way the
// Python peer renders a float as text.
func checksum(seq uint32, sendTS float64, length uint32, payload []byte) [checksumSize]byte {
	preimage := make([]byte, 0, 32+len(payload))
	preimage = strconv.AppendUint(preimage, uint64(seq), 10)
	tsStart := len(preimage)
	preimage = strconv.AppendFloat(preimage, sendTS, 'f', -1, 64)
	if !bytes.ContainsRune(preimage[tsStart:], '.') {
		preimage = append(preimage, ".0"...)
	}
	preimage = strconv.AppendUint(preimage, uint64(length), 10)
	preimage = append(preimage, payload...)
	return md5.Sum(preimage)
}
