package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// uidNamespace scopes minted UIDs so they never collide with other SHA1-UUID
// uses in the system.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("hansard/debate-uid"))

// MintUID derives a deterministic UID for a row that lacks one. The same row
// content at the same position yields the same UID on every run, so
// re-ingestion converges instead of duplicating debates.
func MintUID(position int, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%d", position)
	for _, k := range keys {
		b.WriteByte(0x1f)
		b.WriteString(k)
		b.WriteByte(0x1e)
		b.WriteString(fields[k])
	}

	id := uuid.NewSHA1(uidNamespace, []byte(b.String()))
	return "DEB_" + strings.ReplaceAll(id.String(), "-", "")[:10]
}
