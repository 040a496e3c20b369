package merge

import "bytes"

// ConflictMarkers renders a text conflict between ours and theirs in the
// standard three-way marker format. Absent sides are rendered as empty.
func ConflictMarkers(oursLabel string, ours []byte, theirsLabel string, theirs []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< ")
	buf.WriteString(oursLabel)
	buf.WriteByte('\n')
	buf.Write(ours)
	buf.WriteString("=======\n")
	buf.Write(theirs)
	buf.WriteString(">>>>>>> ")
	buf.WriteString(theirsLabel)
	buf.WriteByte('\n')
	return buf.Bytes()
}
