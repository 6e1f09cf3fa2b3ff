package metadata

import "errors"

// Parser-level error kinds. The volume layer maps these onto its public
// error taxonomy.
var (
	// ErrFormat indicates data that fails structural, signature or
	// validation checks.
	ErrFormat = errors.New("invalid FVE metadata")

	// ErrTruncated indicates data that ends before a declared structure is
	// complete.
	ErrTruncated = errors.New("truncated FVE metadata")
)
