package ctdf

import (
	"fmt"
	"strings"
)

type Conflict struct {
	Type        ConflictType `groups:"basic"`
	TrainRefs   []string     `groups:"basic"`
	LocationRef string       `groups:"basic"`
	Severity    Severity     `groups:"basic"`
}

type ConflictType string

const (
	ConflictTypeSectionCapacity    ConflictType = "SECTION_CAPACITY"
	ConflictTypeStarvation         ConflictType = "STARVATION"
	ConflictTypePlatformContention ConflictType = "PLATFORM_CONTENTION"
	ConflictTypeBlockedRoute       ConflictType = "BLOCKED_ROUTE"
)

func (c *Conflict) Involves(trainRef string) bool {
	for _, ref := range c.TrainRefs {
		if ref == trainRef {
			return true
		}
	}

	return false
}

func (c *Conflict) String() string {
	return fmt.Sprintf("%s at %s (%s)", c.Type, c.LocationRef, strings.Join(c.TrainRefs, ","))
}
