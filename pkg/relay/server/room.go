package server

import (
	"net"
	"sync"
)

// member is one registered connection inside a room.
type member struct {
	conn     net.Conn
	username string
	host     bool

	writeMu sync.Mutex
}

func (m *member) writeLine(line []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if _, err := m.conn.Write(line); err != nil {
		return err
	}
	_, err := m.conn.Write([]byte{'\n'})
	return err
}

// registry maps room ids to their flat member lists. A room exists exactly
// while it has members; there is no separate lifecycle.
type registry struct {
	mu    sync.Mutex
	rooms map[string][]*member
}

func newRegistry() *registry {
	return &registry{rooms: make(map[string][]*member)}
}

func (r *registry) add(roomID string, m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[roomID] = append(r.rooms[roomID], m)
}

func (r *registry) remove(roomID string, m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	for i, candidate := range members {
		if candidate == m {
			r.rooms[roomID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(r.rooms[roomID]) == 0 {
		delete(r.rooms, roomID)
	}
}

// others returns every member of the room except the sender.
func (r *registry) others(roomID string, sender *member) []*member {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*member
	for _, m := range r.rooms[roomID] {
		if m != sender {
			out = append(out, m)
		}
	}
	return out
}

func (r *registry) memberCount(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}
