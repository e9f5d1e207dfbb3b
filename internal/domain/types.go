package domain

// Member is a phone number that resolved to a Telegram user.
type Member struct {
	Phone      string
	UserID     int64
	AccessHash int64
}

// Group describes a freshly created group chat.
type Group struct {
	ID    int64
	Title string
}
