package domain

type AccessType string

const (
	AccessOpen AccessType = "open"
	AccessPaid AccessType = "paid"
)

// AccessTypeFor derives the access type from a normalized price.
func AccessTypeFor(price float64) AccessType {
	if price > 0 {
		return AccessPaid
	}
	return AccessOpen
}

// Event is the canonical in-memory shape screens render.
type Event struct {
	ID              string     `json:"id" validate:"required"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	Venue           string     `json:"venue"`
	City            string     `json:"city"`
	Category        string     `json:"category" validate:"required"`
	Image           string     `json:"image"`
	OrganizerID     string     `json:"organizerId"`
	OrganizerName   string     `json:"organizerName"`
	Price           float64    `json:"price" validate:"gte=0"`
	AccessType      AccessType `json:"accessType" validate:"oneof=open paid"`
	JoinedUsers     []string   `json:"joinedUsers"`
	JoinedCount     int        `json:"joinedCount" validate:"gte=0"`
	HostAvatarURL   string     `json:"hostAvatarUrl"`
	LikedUsers      []string   `json:"likedUsers"`
	RegisteredUsers []string   `json:"registeredUsers"`
}

// Clone returns a deep copy; reducers modify clones, never the original.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.JoinedUsers = cloneStrings(e.JoinedUsers)
	c.LikedUsers = cloneStrings(e.LikedUsers)
	c.RegisteredUsers = cloneStrings(e.RegisteredUsers)
	return &c
}

func (e *Event) LikedBy(userID string) bool      { return contains(e.LikedUsers, userID) }
func (e *Event) JoinedBy(userID string) bool     { return contains(e.JoinedUsers, userID) }
func (e *Event) RegisteredBy(userID string) bool { return contains(e.RegisteredUsers, userID) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
