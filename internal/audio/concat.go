// Package audio provides deterministic MP3 stream concatenation for page
// audio assembly.
package audio

// Join concatenates MP3 byte streams in order. MP3 frames decode
// independently, so stream-level concatenation is valid without re-encoding;
// any leading ID3v2 tag on a non-first segment is stripped so players do not
// stall on metadata in the middle of the stream. The output depends only on
// the input bytes and their order.
func Join(segments [][]byte) []byte {
	var total int
	for _, seg := range segments {
		total += len(seg)
	}

	out := make([]byte, 0, total)
	first := true
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if !first {
			seg = stripID3v2(seg)
		}
		out = append(out, seg...)
		first = false
	}
	return out
}

// stripID3v2 removes a leading ID3v2 tag, if present. The tag header is ten
// bytes: "ID3", version, flags, and a four-byte syncsafe length; a set footer
// flag adds another ten bytes after the tag body.
func stripID3v2(data []byte) []byte {
	if len(data) < 10 || data[0] != 'I' || data[1] != 'D' || data[2] != '3' {
		return data
	}
	size := syncsafe(data[6:10])
	tagLen := 10 + size
	if data[5]&0x10 != 0 {
		tagLen += 10 // footer
	}
	if tagLen >= len(data) {
		return nil
	}
	return data[tagLen:]
}

func syncsafe(b []byte) int {
	return int(b[0]&0x7f)<<21 | int(b[1]&0x7f)<<14 | int(b[2]&0x7f)<<7 | int(b[3]&0x7f)
}
