package domain

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NormalizeEvent is the single total conversion from an API event to the
// canonical Event. It fails only when the record has no usable id or the
// result does not validate.
func NormalizeEvent(raw RawEvent) (*Event, error) {
	e, err := convertEvent(raw)
	if err != nil {
		return nil, err
	}
	e.Category = NormalizeCategory(raw.Category)
	return checked(e)
}

// ShallowEvent is the lighter conversion the home feed uses: same fields, but
// no categorization. Every result carries PlaceholderCategory.
func ShallowEvent(raw RawEvent) (*Event, error) {
	e, err := convertEvent(raw)
	if err != nil {
		return nil, err
	}
	e.Category = PlaceholderCategory
	return checked(e)
}

// NormalizeEvents converts a batch, dropping records that fail. The dropped
// errors are returned so callers can log them.
func NormalizeEvents(raws []RawEvent) ([]*Event, []error) {
	return normalizeAll(raws, NormalizeEvent)
}

func ShallowEvents(raws []RawEvent) ([]*Event, []error) {
	return normalizeAll(raws, ShallowEvent)
}

func normalizeAll(raws []RawEvent, fn func(RawEvent) (*Event, error)) ([]*Event, []error) {
	out := make([]*Event, 0, len(raws))
	var dropped []error
	for _, r := range raws {
		e, err := fn(r)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		out = append(out, e)
	}
	return out, dropped
}

func convertEvent(raw RawEvent) (*Event, error) {
	id := firstNonEmpty(raw.MongoID, raw.ID)
	if id == "" {
		return nil, ErrMissingID("event")
	}

	price := raw.Price.Value()

	joined := nonNil(raw.JoinedUsers)
	joinedCount := len(joined)
	if raw.JoinedCount != nil && *raw.JoinedCount >= 0 {
		joinedCount = *raw.JoinedCount
	}

	return &Event{
		ID:              id,
		Title:           strings.TrimSpace(raw.Title),
		Description:     strings.TrimSpace(raw.Description),
		Date:            strings.TrimSpace(raw.Date),
		Time:            strings.TrimSpace(raw.Time),
		Venue:           firstNonEmpty(raw.Venue, raw.Location),
		City:            strings.TrimSpace(raw.City),
		Image:           firstNonEmpty(raw.Image, raw.ImageURL),
		OrganizerID:     raw.Organizer.ID,
		OrganizerName:   firstNonEmpty(raw.OrganizerName, raw.Organizer.FullName),
		Price:           price,
		AccessType:      AccessTypeFor(price),
		JoinedUsers:     joined,
		JoinedCount:     joinedCount,
		HostAvatarURL:   firstNonEmpty(raw.HostAvatarURL, raw.Organizer.Avatar),
		LikedUsers:      nonNil(raw.LikedUsers),
		RegisteredUsers: nonNil(raw.RegisteredUsers),
	}, nil
}

func checked(e *Event) (*Event, error) {
	if err := validate.Struct(e); err != nil {
		return nil, WithMeta(ErrInvalidRecord("event", err), map[string]string{
			"entity": "event",
			"id":     e.ID,
		})
	}
	return e, nil
}

// NormalizeUser back-fills _id from id and defaults liked-events visibility.
func NormalizeUser(raw RawUser) (*User, error) {
	id := firstNonEmpty(raw.MongoID, raw.ID)
	if id == "" {
		return nil, ErrMissingID("user")
	}
	vis := strings.ToLower(strings.TrimSpace(raw.LikedEventsVisibility))
	if vis != VisibilityPrivate {
		vis = VisibilityPublic
	}
	u := &User{
		ID:                    id,
		FullName:              strings.TrimSpace(raw.FullName),
		Email:                 strings.TrimSpace(raw.Email),
		JoinedEvents:          RefList(nonNil(raw.JoinedEvents)),
		LikedEventsVisibility: vis,
	}
	if err := validate.Struct(u); err != nil {
		return nil, ErrInvalidRecord("user", err)
	}
	return u, nil
}

func NormalizeTicket(raw RawTicket) (*Ticket, error) {
	id := firstNonEmpty(raw.MongoID, raw.ID)
	if id == "" {
		return nil, ErrMissingID("ticket")
	}
	t := &Ticket{
		ID:      id,
		EventID: RefID(raw.Event),
		UserID:  RefID(raw.User),
		Status:  strings.TrimSpace(raw.Status),
		QRCode:  strings.TrimSpace(raw.QRCode),
		Theme:   raw.Theme,
	}
	if err := validate.Struct(t); err != nil {
		return nil, ErrInvalidRecord("ticket", err)
	}
	return t, nil
}

func NormalizeTickets(raws []RawTicket) ([]*Ticket, []error) {
	out := make([]*Ticket, 0, len(raws))
	var dropped []error
	for _, r := range raws {
		t, err := NormalizeTicket(r)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		out = append(out, t)
	}
	return out, dropped
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
