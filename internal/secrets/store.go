package secrets

import "errors"

// Store is the interface for credential storage.
// Items are addressed by a service name and an account key within it.
type Store interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
	Delete(service, account string) error
	// List returns the account keys stored for service
	List(service string) ([]string, error)
}

// ErrNotFound is returned when an item is not found in the store
var ErrNotFound = errors.New("key not found")

// ErrListUnsupported is returned by stores that cannot enumerate their items
var ErrListUnsupported = errors.New("listing is not supported by this store")

// AppName namespaces on-disk state of all stores
const AppName = "credstash"
