// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package rowcodec

import (
	"encoding/binary"
	"math"

	"github.com/nxsql/qcore/batch"
)

// encodeValue appends the memcomparable big-endian encoding of the non-null
// value at (c, row) to *buf. Integers flip their sign bit so that two's
// complement ordering becomes unsigned-byte-lexicographic ordering; floats
// apply the standard IEEE-754 order-preserving bit transform; strings are
// escaped so that the encoding stays prefix-free.
func encodeValue(buf *[]byte, typ batch.Type, c batch.Column, row int) error {
	switch typ {
	case batch.Int64:
		v := c.(*batch.Int64Column).Values[row]
		appendUint64(buf, uint64(v)^signBit)
	case batch.Timestamp:
		v := c.(*batch.TimestampColumn).Micros[row]
		appendUint64(buf, uint64(v)^signBit)
	case batch.Float64:
		v := c.(*batch.Float64Column).Values[row]
		appendUint64(buf, orderPreservingFloatBits(v))
	case batch.Bool:
		v := c.(*batch.BoolColumn).At(row)
		if v {
			*buf = append(*buf, 0x01)
		} else {
			*buf = append(*buf, 0x00)
		}
	case batch.String:
		appendEscapedString(buf, c.(*batch.StringColumn).At(row))
	case batch.StringView:
		appendEscapedString(buf, c.(*batch.StringViewColumn).At(row))
	default:
		return ErrUnsupportedType
	}
	return nil
}

const signBit = uint64(1) << 63

func appendUint64(buf *[]byte, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	*buf = append(*buf, tmp[:]...)
}

// orderPreservingFloatBits maps a float64's bit pattern so that unsigned
// big-endian comparison of the result matches float comparison: for
// positive floats, flip the sign bit; for negative floats, flip every bit
// (this also reorders NaN payloads consistently, which callers must avoid
// relying on — NaN ordering among NaNs is unspecified by SQL anyway).
func orderPreservingFloatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&signBit != 0 {
		return ^bits
	}
	return bits | signBit
}

// appendEscapedString appends v encoded so that the result is prefix-free:
// every literal 0x00 byte is escaped to 0x00 0xff, and the value is
// terminated by 0x00 0x00, which cannot occur inside an escaped value
// (a real 0x00 is always immediately followed by 0xff).
func appendEscapedString(buf *[]byte, v []byte) {
	for _, b := range v {
		if b == 0x00 {
			*buf = append(*buf, 0x00, 0xff)
		} else {
			*buf = append(*buf, b)
		}
	}
	*buf = append(*buf, 0x00, 0x00)
}
