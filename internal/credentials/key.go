package credentials

import "hash/fnv"

// StorageKey identifies one credential: an account key within a service namespace.
// It is comparable and can be used directly as a map key.
type StorageKey struct {
	service string
	account string
}

// NewStorageKey creates a StorageKey for the given service and account
func NewStorageKey(service, account string) StorageKey {
	return StorageKey{service: service, account: account}
}

// Service returns the service name
func (k StorageKey) Service() string {
	return k.service
}

// Account returns the account key within the service
func (k StorageKey) Account() string {
	return k.account
}

// Hash returns a stable hash of both fields.
// A zero byte separates the fields so ("ab","c") and ("a","bc") differ.
func (k StorageKey) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(k.service))
	h.Write([]byte{0})
	h.Write([]byte(k.account))
	return h.Sum64()
}

// String returns "service/account"
func (k StorageKey) String() string {
	return k.service + "/" + k.account
}
