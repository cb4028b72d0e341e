package streamindex

import "errors"

// ErrNotBuilt is returned when a chunk's stream index has not been built yet.
var ErrNotBuilt = errors.New("stream index not built for chunk")
