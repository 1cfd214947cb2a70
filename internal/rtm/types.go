package rtm

// User is a workspace member known to the directory.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	IsBot bool   `json:"is_bot"`
}

// Channel is a named room. IsMember reports whether the bot is in it.
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsMember bool   `json:"is_member"`
}

// IM is a direct-message room between the bot and a single user.
type IM struct {
	ID     string `json:"id"`
	User   string `json:"user"`
	IsOpen bool   `json:"is_open"`
}

// Self is the bot's own identity as reported by the handshake.
type Self struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Snapshot is the result of a successful handshake: a short-lived stream
// URL plus the authoritative directory contents at that instant.
type Snapshot struct {
	URL      string
	Self     Self
	Users    []User
	Channels []Channel
	IMs      []IM
}
