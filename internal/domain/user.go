package domain

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// User is the session user as the store keeps it. ID is always populated.
type User struct {
	ID                    string  `json:"_id" validate:"required"`
	FullName              string  `json:"fullName"`
	Email                 string  `json:"email"`
	JoinedEvents          RefList `json:"joinedEvents"`
	LikedEventsVisibility string  `json:"likedEventsVisibility" validate:"oneof=public private"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.JoinedEvents = RefList(cloneStrings(u.JoinedEvents))
	return &c
}

// Ticket is a purchased or reserved seat. Theme colors are opaque here.
type Ticket struct {
	ID      string       `json:"id" validate:"required"`
	EventID string       `json:"eventId"`
	UserID  string       `json:"userId"`
	Status  string       `json:"status"`
	QRCode  string       `json:"qrCode"`
	Theme   *TicketTheme `json:"theme,omitempty"`
}

type TicketTheme struct {
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Accent     string `json:"accent"`
}
