package registry

import (
	"strings"
	"sync"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/internal/geo"
)

// Registry is the in-memory bidirectional room index. rooms and memberships
// must stay symmetric after every operation: a contractor appears in a room's
// member set exactly when the room appears in the contractor's room set. All
// state is guarded by one mutex; operations never perform I/O, so coarse
// locking is sufficient at connected-contractor scale.
type Registry struct {
	mu          sync.RWMutex
	keyer       geo.Keyer
	rooms       map[string]map[string]struct{} // room -> contractor ids
	memberships map[string]map[string]struct{} // contractor id -> rooms
	locations   map[string]domain.Location
	profiles    map[string]domain.ContractorProfile
	clients     map[string]map[string]contracts.Client // contractor id -> socket id -> client
}

func NewRegistry(keyer geo.Keyer) *Registry {
	return &Registry{
		keyer:       keyer,
		rooms:       make(map[string]map[string]struct{}),
		memberships: make(map[string]map[string]struct{}),
		locations:   make(map[string]domain.Location),
		profiles:    make(map[string]domain.ContractorProfile),
		clients:     make(map[string]map[string]contracts.Client),
	}
}

// Register tracks a live socket. A contractor may hold several sockets
// (multiple devices); each lands in the same rooms via the gateway.
func (r *Registry) Register(c contracts.Client, profile domain.ContractorProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := c.ContractorID()
	if r.clients[id] == nil {
		r.clients[id] = make(map[string]contracts.Client)
	}
	r.clients[id][c.ID()] = c
	r.profiles[id] = profile
}

// Unregister drops the socket and reports how many sockets remain for the
// contractor. Room membership survives until the caller decides to LeaveAll.
func (r *Registry) Unregister(c contracts.Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := c.ContractorID()
	delete(r.clients[id], c.ID())
	remaining := len(r.clients[id])
	if remaining == 0 {
		delete(r.clients, id)
		delete(r.profiles, id)
	}
	return remaining
}

// Join adds the contractor to a room. Rooms are created lazily on first join;
// repeated joins are no-ops.
func (r *Registry) Join(contractorID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinLocked(contractorID, room)
}

func (r *Registry) joinLocked(contractorID, room string) {
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][contractorID] = struct{}{}
	if r.memberships[contractorID] == nil {
		r.memberships[contractorID] = make(map[string]struct{})
	}
	r.memberships[contractorID][room] = struct{}{}
}

// Leave removes the contractor from a room, dropping empty sets so the maps
// never accumulate dead entries.
func (r *Registry) Leave(contractorID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(contractorID, room)
}

func (r *Registry) leaveLocked(contractorID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, contractorID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if set, ok := r.memberships[contractorID]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(r.memberships, contractorID)
		}
	}
}

// LeaveAll removes the contractor from every room and clears its location.
// Called once when the contractor's last socket disconnects.
func (r *Registry) LeaveAll(contractorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.memberships[contractorID] {
		if members, ok := r.rooms[room]; ok {
			delete(members, contractorID)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
	}
	delete(r.memberships, contractorID)
	delete(r.locations, contractorID)
}

// SetLocation swaps the contractor's location room in one critical section so
// no observer ever sees it in two location rooms or in neither.
func (r *Registry) SetLocation(contractorID string, lat, lng, radiusKm float64) {
	if radiusKm <= 0 {
		radiusKm = domain.DefaultRadiusKm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.locations[contractorID]; ok {
		r.leaveLocked(contractorID, r.keyer.LocationRoomKey(old.Lat, old.Lng, old.RadiusKm))
	}
	r.joinLocked(contractorID, r.keyer.LocationRoomKey(lat, lng, radiusKm))
	r.locations[contractorID] = domain.Location{Lat: lat, Lng: lng, RadiusKm: radiusKm}
}

func (r *Registry) RoomsFor(contractorID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]string, 0, len(r.memberships[contractorID]))
	for room := range r.memberships[contractorID] {
		rooms = append(rooms, room)
	}
	return rooms
}

func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		members = append(members, id)
	}
	return members
}

// StatsByRoom counts members per room. Names the parser does not recognize
// are excluded so transport-internal rooms never leak into the debug view.
func (r *Registry) StatsByRoom() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make(map[string]int, len(r.rooms))
	for room, members := range r.rooms {
		if geo.ParseRoomKey(room) == nil {
			continue
		}
		stats[room] = len(members)
	}
	return stats
}

// ContractorsInRadius scans every tracked location. Linear scan is fine at
// the connected-contractor counts this runs at; it is the documented scaling
// ceiling, not a defect.
func (r *Registry) ContractorsInRadius(lat, lng, radiusKm float64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, loc := range r.locations {
		if geo.DistanceKm(lat, lng, loc.Lat, loc.Lng) <= radiusKm {
			ids = append(ids, id)
		}
	}
	return ids
}

// ContractorsWithSkills matches connected contractors by case-insensitive
// substring in either direction, so "setup" finds "Bounce House Setup" and a
// verbose query still finds a terse profile skill.
func (r *Registry) ContractorsWithSkills(skills []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, profile := range r.profiles {
		if matchesAnySkill(profile.Skills, skills) {
			ids = append(ids, id)
		}
	}
	return ids
}

func matchesAnySkill(have, want []string) bool {
	for _, h := range have {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		for _, w := range want {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if strings.Contains(h, w) || strings.Contains(w, h) {
				return true
			}
		}
	}
	return false
}

// ClientsInRoom snapshots the live sockets of every member of a room. The
// caller sends on the copies after the lock is released.
func (r *Registry) ClientsInRoom(room string) []contracts.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []contracts.Client
	for id := range r.rooms[room] {
		for _, c := range r.clients[id] {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) ClientsFor(contractorID string) []contracts.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contracts.Client, 0, len(r.clients[contractorID]))
	for _, c := range r.clients[contractorID] {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsLive(contractorID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[contractorID]) > 0
}
