package token

import "sync"

// MemoryCache is an in-process MicrosoftCache. Credentials are seeded at
// authorization time and survive only for the lifetime of the process,
// mirroring the identity library's default in-memory token cache.
type MemoryCache struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{creds: make(map[string]string)}
}

// Put stores the refresh credential for an account handle.
func (c *MemoryCache) Put(handle, credential string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds[handle] = credential
}

// RefreshCredential returns the cached credential for the handle.
func (c *MemoryCache) RefreshCredential(handle string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cred, ok := c.creds[handle]
	return cred, ok
}
