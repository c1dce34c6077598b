package memclang

import "github.com/ardanlabs/cextract/clang"

// layoutRecord assigns bit offsets to the members of a record definition
// and returns the record size and alignment in bytes.
func layoutRecord(c *Cursor) (int64, int64) {
	union := c.kind == clang.CursorUnionDecl

	var offset, unionSize int64
	var align int64 = 1

	for _, ch := range c.children {
		switch {
		case ch.kind == clang.CursorFieldDecl:
		case ch.kind.IsRecord() && ch.anonRecord:
		default:
			continue
		}

		t := ch.typ
		tsize, talign := t.Size()*8, t.Align()*8

		if ch.bitField {
			switch {
			case union:
				ch.offset = 0
				unionSize = max(unionSize, alignUp(ch.width, 8))
			case ch.width == 0:
				offset = alignUp(offset, talign)
				continue
			default:
				if offset%talign+ch.width > tsize {
					offset = alignUp(offset, talign)
				}
				ch.offset = offset
				offset += ch.width
			}
			if ch.spelling != "" {
				align = max(align, talign/8)
			}
			continue
		}

		size := tsize
		if t.canonicalType().kind == clang.TypeIncompleteArray {
			size = 0
		}

		if union {
			ch.offset = 0
			unionSize = max(unionSize, size)
		} else {
			offset = alignUp(offset, talign)
			ch.offset = offset
			offset += size
		}
		align = max(align, talign/8)
	}

	if union {
		offset = unionSize
	}
	return alignUp(offset, align*8) / 8, align
}

func alignUp(n, align int64) int64 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}
