package rag

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
)

// BuildQuery renders criteria as the retrieval query. Tag sets are sorted
// and deduplicated, so equal criteria always produce the same string.
func BuildQuery(c domain.SelectionCriteria) string {
	n := c.Normalize()
	return fmt.Sprintf("Klasy: %s, Paliwo: %s, Wyposażenie: %s, Cena zakupu: %d",
		strings.Join(n.ClassNames(), ", "),
		strings.Join(n.FuelNames(), ", "),
		strings.Join(n.Equipment, ", "),
		n.MaxPrice,
	)
}
