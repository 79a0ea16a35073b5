package tarearbol

import "github.com/saverio-kantox/tarearbol/id"

// ID is the identifier type for tarearbol entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
