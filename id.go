package fieldwork

import "github.com/garagescholars/garage-tech-stack-sub001/id"

// ID is the primary identifier type for all fieldwork entities.
type ID = id.ID

// Prefix identifies the entity type encoded in an ID.
type Prefix = id.Prefix
