// Package driver holds definitions shared by the cache backends.
package driver

import "errors"

// ErrKeyNotFound is returned by every backend when a key is absent or expired.
var ErrKeyNotFound = errors.New("key not found")

// JoinPrefix combines a namespace and a key prefix the same way for all backends.
func JoinPrefix(namespace, keyPrefix string) string {
	if namespace == "" {
		return keyPrefix
	}
	return namespace + ":" + keyPrefix
}
