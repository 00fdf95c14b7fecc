package cache

// Kind identifies a logical resource family.
type Kind string

const (
	KindEventsApproved Kind = "events_approved"
	KindEvent          Kind = "event"
	KindUserProfile    Kind = "user"
	KindTicket         Kind = "ticket"
	KindTicketsMine    Kind = "tickets_my"
)

// Key is a logical resource identity. Its storage string is deterministic
// and bit-exact with what other clients of the same store expect.
type Key struct {
	kind Kind
	id   string
}

func EventsApproved() Key           { return Key{kind: KindEventsApproved} }
func EventByID(id string) Key       { return Key{kind: KindEvent, id: id} }
func UserProfileByID(id string) Key { return Key{kind: KindUserProfile, id: id} }
func TicketByID(id string) Key      { return Key{kind: KindTicket, id: id} }
func TicketsMine() Key              { return Key{kind: KindTicketsMine} }
func (k Key) Kind() Kind            { return k.kind }
func (k Key) ID() string            { return k.id }

// String is the storage key. The per-kind prefixes are fixed and none is a
// prefix of another, so appending the raw id stays collision-free even when
// the id contains '_'.
func (k Key) String() string {
	switch k.kind {
	case KindEventsApproved:
		return "cache_events_approved"
	case KindEvent:
		return "cache_event_" + k.id
	case KindUserProfile:
		return "cache_user_" + k.id
	case KindTicket:
		return "cache_ticket_" + k.id
	case KindTicketsMine:
		return "cache_tickets_my"
	default:
		return "cache_unknown_" + k.id
	}
}
