package rtm

import (
	"strings"
	"sync"
)

// Directory is the in-memory mirror of users, channels and direct-message
// rooms. It is the single owner of that state; every access goes through
// its mutex. Lookups compare ids and names case-insensitively.
type Directory struct {
	mu       sync.RWMutex
	users    []User
	channels []Channel
	ims      []IM
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// Replace swaps the whole contents for the snapshot's. Handshake snapshots
// are authoritative, so nothing from the previous contents is kept.
func (d *Directory) Replace(s Snapshot) {
	users := append([]User(nil), s.Users...)
	channels := append([]Channel(nil), s.Channels...)
	ims := append([]IM(nil), s.IMs...)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = users
	d.channels = channels
	d.ims = ims
}

// AddUser records u, replacing any entry with the same id.
func (d *Directory) AddUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := indexOf(d.users, func(x User) bool { return strings.EqualFold(x.ID, u.ID) }); i >= 0 {
		d.users[i] = u
		return
	}
	d.users = append(d.users, u)
}

// AddChannel records c, replacing any entry with the same id.
func (d *Directory) AddChannel(c Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.putChannel(c)
}

func (d *Directory) putChannel(c Channel) {
	if i := indexOf(d.channels, func(x Channel) bool { return strings.EqualFold(x.ID, c.ID) }); i >= 0 {
		d.channels[i] = c
		return
	}
	d.channels = append(d.channels, c)
}

// RemoveChannel deletes the channel with the given id and returns it.
// Removing an unknown id is a no-op.
func (d *Directory) RemoveChannel(id string) (Channel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := indexOf(d.channels, func(x Channel) bool { return strings.EqualFold(x.ID, id) })
	if i < 0 {
		return Channel{}, false
	}
	old := d.channels[i]
	d.channels = append(d.channels[:i], d.channels[i+1:]...)
	return old, true
}

// RenameChannel applies a rename event. If an entry with c.ID exists it is
// replaced by c and the previous entry is returned. Membership is carried
// over from the old entry since rename payloads do not reliably include it.
// An unknown id is simply added.
func (d *Directory) RenameChannel(c Channel) (Channel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := indexOf(d.channels, func(x Channel) bool { return strings.EqualFold(x.ID, c.ID) })
	if i < 0 {
		d.channels = append(d.channels, c)
		return Channel{}, false
	}
	old := d.channels[i]
	c.IsMember = c.IsMember || old.IsMember
	d.channels = append(d.channels[:i], d.channels[i+1:]...)
	d.channels = append(d.channels, c)
	return old, true
}

// SetChannelMember updates the membership flag of channel id.
func (d *Directory) SetChannelMember(id string, member bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := indexOf(d.channels, func(x Channel) bool { return strings.EqualFold(x.ID, id) })
	if i < 0 {
		return false
	}
	d.channels[i].IsMember = member
	return true
}

// AddIM records im, replacing any entry with the same id.
func (d *Directory) AddIM(im IM) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := indexOf(d.ims, func(x IM) bool { return strings.EqualFold(x.ID, im.ID) }); i >= 0 {
		d.ims[i] = im
		return
	}
	d.ims = append(d.ims, im)
}

// MarkIMOpen sets the open flag of room id.
func (d *Directory) MarkIMOpen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := indexOf(d.ims, func(x IM) bool { return strings.EqualFold(x.ID, id) })
	if i < 0 {
		return false
	}
	d.ims[i].IsOpen = true
	return true
}

// FindChannel matches s against channel ids and names.
func (d *Directory) FindChannel(s string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return find(d.channels, func(c Channel) bool {
		return strings.EqualFold(c.ID, s) || strings.EqualFold(c.Name, s)
	})
}

// FindIM matches s against room ids, the associated user id, and that
// user's name.
func (d *Directory) FindIM(s string) (IM, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if im, ok := find(d.ims, func(im IM) bool {
		return strings.EqualFold(im.ID, s) || strings.EqualFold(im.User, s)
	}); ok {
		return im, true
	}
	u, ok := find(d.users, func(u User) bool { return strings.EqualFold(u.Name, s) })
	if !ok {
		return IM{}, false
	}
	return find(d.ims, func(im IM) bool { return strings.EqualFold(im.User, u.ID) })
}

// FindUser matches s against user ids and names.
func (d *Directory) FindUser(s string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return find(d.users, func(u User) bool {
		return strings.EqualFold(u.ID, s) || strings.EqualFold(u.Name, s)
	})
}

// UserByID matches only user ids.
func (d *Directory) UserByID(id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return find(d.users, func(u User) bool { return strings.EqualFold(u.ID, id) })
}

// IMForUser returns the direct-message room associated with userID.
func (d *Directory) IMForUser(userID string) (IM, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return find(d.ims, func(im IM) bool { return im.User == userID })
}

// IsIM reports whether id is a known direct-message room.
func (d *Directory) IsIM(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := find(d.ims, func(im IM) bool { return im.ID == id })
	return ok
}

func (d *Directory) HasUser(id string) bool {
	_, ok := d.UserByID(id)
	return ok
}

func (d *Directory) HasChannel(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := find(d.channels, func(c Channel) bool { return strings.EqualFold(c.ID, id) })
	return ok
}

func (d *Directory) HasIM(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := find(d.ims, func(im IM) bool { return strings.EqualFold(im.ID, id) })
	return ok
}

// Users returns a copy of the known users.
func (d *Directory) Users() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]User(nil), d.users...)
}

// Channels returns a copy of the known channels.
func (d *Directory) Channels() []Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Channel(nil), d.channels...)
}

// IMs returns a copy of the known direct-message rooms.
func (d *Directory) IMs() []IM {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]IM(nil), d.ims...)
}

func find[T any](items []T, match func(T) bool) (T, bool) {
	if i := indexOf(items, match); i >= 0 {
		return items[i], true
	}
	var zero T
	return zero, false
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, item := range items {
		if match(item) {
			return i
		}
	}
	return -1
}
