package shellcache

import "fmt"

// InstallError reports the asset whose fetch aborted an install.
// The partially populated generation has already been dropped when this
// error is returned.
type InstallError struct {
	Generation string
	Asset      string
	Err        error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %q aborted: asset %q: %v", e.Generation, e.Asset, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// ErrBadStatus marks an install fetch that completed but returned a
// non-success status.
type ErrBadStatus struct {
	Status int
}

func (e *ErrBadStatus) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}
