package covstore

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dcov/lib/coverage"
)

// SchemaVersion is the first segment of every record key. It is shared with existing
// deployments and must not change.
const SchemaVersion = "coverband_3_3"

const (
	separator  = "."
	lockPrefix = "lock:"
)

// RecordKey returns the key of the record of path for type t:
//
//	<schema-version>.<namespace>.<type>.<path>
//
// e.g. "coverband_3_3.coverband_test.runtime../dog.rb"
func RecordKey(namespace string, t coverage.Type, path string) string {
	return typePrefix(namespace, t) + path
}

func namespacePrefix(namespace string) string {
	return SchemaVersion + separator + namespace + separator
}

func typePrefix(namespace string, t coverage.Type) string {
	return namespacePrefix(namespace) + string(t) + separator
}

// lockKey returns the key of the lock guarding a record. Lock keys don't share the
// namespace prefix, so clearing a namespace never removes a held lock.
func lockKey(recordKey string) string {
	return lockPrefix + recordKey
}

// parseKey splits a key of the namespace into type and path
func parseKey(namespace, key string) (coverage.Type, string, error) {
	rest, ok := strings.CutPrefix(key, namespacePrefix(namespace))
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not in namespace %q", ErrKeyCollision, key, namespace)
	}
	typ, path, ok := strings.Cut(rest, separator)
	t := coverage.Type(typ)
	if !ok || path == "" || !t.Stored() {
		return "", "", fmt.Errorf("%w: %q has no valid type and path", ErrKeyCollision, key)
	}
	return t, path, nil
}
