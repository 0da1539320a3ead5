package catalog

import "errors"

// ErrNotFound reports a lookup that matched no catalog row. Maintenance flows
// treat it as skippable: one missing entry does not halt a batch.
var ErrNotFound = errors.New("catalog: not found")
