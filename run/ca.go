package run

import (
	// Bundled CA roots so that binaries built from scratch images
	// can still verify TLS peers. Imported here because every
	// binary goes through this package.
	_ "golang.org/x/crypto/x509roots/fallback"
)
