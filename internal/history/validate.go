package history

import "fmt"

// ContractError reports a list that breaks the ordering or identity rules the
// rest of the package relies on.
type ContractError struct {
	Position int
	ID       StableID
	Reason   string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("history: %s at position %d (%s)", e.Reason, e.Position, e.ID)
}

// Validate checks that list has no duplicate StableIDs and is sorted newest
// first.
func Validate(list []RenderedEntry) error {
	seen := make(map[StableID]int, len(list))
	for i, r := range list {
		id := r.ID()
		if j, dup := seen[id]; dup {
			return &ContractError{Position: i, ID: id, Reason: fmt.Sprintf("duplicate id, first seen at %d", j)}
		}
		seen[id] = i
		if i > 0 && before(list[i-1].Entry, r.Entry) {
			return &ContractError{Position: i, ID: id, Reason: "key inversion"}
		}
	}
	return nil
}

// MustValidate panics if Validate fails.
func MustValidate(list []RenderedEntry) {
	if err := Validate(list); err != nil {
		panic(err)
	}
}
