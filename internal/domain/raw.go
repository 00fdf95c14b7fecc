package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The API is loose about shapes: ids arrive as "_id" or "id", prices as a
// number, the string "free" or nothing, and user references either as bare
// ids or as wrapper objects. The Raw* types absorb that; Normalize* turns
// them into the canonical entities.

type PriceKind int

const (
	PriceAbsent PriceKind = iota
	PriceFree
	PriceAmount
	PriceUnparsable
)

// Price is the tagged form of the API's price field.
type Price struct {
	Kind   PriceKind
	Amount float64
}

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = Price{Kind: PriceAbsent}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*p = Price{Kind: PriceUnparsable}
			return nil
		}
		*p = parsePriceString(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*p = Price{Kind: PriceUnparsable}
		return nil
	}
	*p = Price{Kind: PriceAmount, Amount: f}
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PriceFree:
		return []byte(`"free"`), nil
	case PriceAmount:
		return json.Marshal(p.Amount)
	default:
		return []byte("null"), nil
	}
}

func parsePriceString(s string) Price {
	v := strings.TrimSpace(s)
	if v == "" {
		return Price{Kind: PriceAbsent}
	}
	if strings.EqualFold(v, "free") {
		return Price{Kind: PriceFree}
	}
	v = strings.TrimPrefix(v, "$")
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return Price{Kind: PriceAmount, Amount: f}
	}
	return Price{Kind: PriceUnparsable}
}

// Value is the non-negative numeric price. Free, absent, unparsable and
// negative prices are all 0.
func (p Price) Value() float64 {
	if p.Kind != PriceAmount || p.Amount < 0 {
		return 0
	}
	return p.Amount
}

// RefList is a list of entity ids that the API may send as bare strings or as
// objects such as {"_id": ...}, {"id": ...} or {"event": {"_id": ...}}.
// Entries that resolve to no id are dropped while decoding.
type RefList []string

func (r *RefList) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*r = nil
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(RefList, 0, len(items))
	for _, it := range items {
		if id := RefID(it); id != "" {
			out = append(out, id)
		}
	}
	*r = out
	return nil
}

// RefID extracts an id from one reference entry, or "" when there is none.
func RefID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '{':
		var obj struct {
			MongoID string          `json:"_id"`
			ID      string          `json:"id"`
			Event   json.RawMessage `json:"event"`
			User    json.RawMessage `json:"user"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ""
		}
		if len(obj.Event) > 0 {
			return RefID(obj.Event)
		}
		if len(obj.User) > 0 {
			return RefID(obj.User)
		}
		return firstNonEmpty(obj.MongoID, obj.ID)
	}
	return ""
}

// RawOrganizer accepts either an id string or a populated user object.
type RawOrganizer struct {
	ID       string
	FullName string
	Avatar   string
}

func (o *RawOrganizer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*o = RawOrganizer{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = RawOrganizer{ID: strings.TrimSpace(s)}
		return nil
	}
	var obj struct {
		MongoID      string `json:"_id"`
		ID           string `json:"id"`
		FullName     string `json:"fullName"`
		Name         string `json:"name"`
		Avatar       string `json:"avatar"`
		ProfileImage string `json:"profileImage"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*o = RawOrganizer{
		ID:       firstNonEmpty(obj.MongoID, obj.ID),
		FullName: firstNonEmpty(obj.FullName, obj.Name),
		Avatar:   firstNonEmpty(obj.Avatar, obj.ProfileImage),
	}
	return nil
}

type RawEvent struct {
	MongoID         string       `json:"_id"`
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Date            string       `json:"date"`
	Time            string       `json:"time"`
	Venue           string       `json:"venue"`
	Location        string       `json:"location"`
	City            string       `json:"city"`
	Category        string       `json:"category"`
	Image           string       `json:"image"`
	ImageURL        string       `json:"imageUrl"`
	Organizer       RawOrganizer `json:"organizer"`
	OrganizerName   string       `json:"organizerName"`
	HostAvatarURL   string       `json:"hostAvatarUrl"`
	Price           Price        `json:"price"`
	JoinedUsers     RefList      `json:"joinedUsers"`
	JoinedCount     *int         `json:"joinedCount"`
	LikedUsers      RefList      `json:"likedUsers"`
	RegisteredUsers RefList      `json:"registeredUsers"`
}

type RawUser struct {
	MongoID               string  `json:"_id"`
	ID                    string  `json:"id"`
	FullName              string  `json:"fullName"`
	Email                 string  `json:"email"`
	JoinedEvents          RefList `json:"joinedEvents"`
	LikedEventsVisibility string  `json:"likedEventsVisibility"`
}

type RawTicket struct {
	MongoID string          `json:"_id"`
	ID      string          `json:"id"`
	Event   json.RawMessage `json:"event"`
	User    json.RawMessage `json:"user"`
	Status  string          `json:"status"`
	QRCode  string          `json:"qrCode"`
	Theme   *TicketTheme    `json:"theme"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
