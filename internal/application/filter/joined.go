package filter

import (
	"encoding/json"

	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
)

// IDSet is a set of entity ids.
type IDSet map[string]struct{}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// JoinedIDs flattens a user's joined events into a set, dropping blanks.
func JoinedIDs(refs domain.RefList) IDSet {
	out := make(IDSet, len(refs))
	for _, id := range refs {
		if id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

// JoinedIDsFromRaw accepts the API's joinedEvents field as sent: bare ids
// or {event: {_id|id}} wrappers, with nulls mixed in. Undecodable input
// yields an empty set.
func JoinedIDsFromRaw(raw json.RawMessage) IDSet {
	var refs domain.RefList
	if len(raw) == 0 || json.Unmarshal(raw, &refs) != nil {
		return IDSet{}
	}
	return JoinedIDs(refs)
}
