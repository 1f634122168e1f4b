// Package nvs is the non-volatile key/value store used for user settings,
// the cached fix and the GPS history. Keys live in namespaces; a namespace
// is cleared as one unit.
package nvs

import "biketrack-go/errcode"

// Store is the black-box flash key/value interface.
type Store interface {
	Get(ns, key string) (string, bool)
	Put(ns, key, val string) error
	// Clear drops every key in ns atomically.
	Clear(ns string) error
}

// PutAll writes several keys; it stops at the first failure.
func PutAll(s Store, ns string, kv map[string]string) error {
	for k, v := range kv {
		if err := s.Put(ns, k, v); err != nil {
			return errcode.Wrap(errcode.StorageFailed, "nvs.put "+ns+"/"+k, err)
		}
	}
	return nil
}
