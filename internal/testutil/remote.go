package testutil

import (
	"zipup/internal/remote"
	"zipup/internal/zipup"
)

// TestOwner is the account used by NewTestCredentials.
const TestOwner = "alice"

// NewTestRemote returns an in-memory remote whose repositories default to
// the "main" branch.
func NewTestRemote() *remote.MemoryRemote {
	return remote.NewMemoryRemote("", "main")
}

// NewTestCredentials returns credentials accepted by the memory remote.
func NewTestCredentials() zipup.Credentials {
	return zipup.Credentials{Owner: TestOwner, Token: "test-token"}
}
