// Package identity resolves opaque user ids to display identities.
// Lookups go through an in-process cache that membership events keep warm.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when the directory has no such member or user.
var ErrNotFound = errors.New("identity not found")

// Identity is how a user is displayed.
type Identity struct {
	UserID      string
	DisplayName string
	Username    string
	IsBot       bool
}

// Label returns the best human readable name for the identity.
func (i Identity) Label() string {
	switch {
	case i.DisplayName != "":
		return i.DisplayName
	case i.Username != "":
		return "@" + i.Username
	default:
		return i.UserID
	}
}

// Directory is the platform's member and user directory.
type Directory interface {
	// Member looks a user up within a guild. Returns ErrNotFound if they are not a member.
	Member(ctx context.Context, guildID, userID string) (Identity, error)
	// User looks a user up globally. Returns ErrNotFound if the user does not exist.
	User(ctx context.Context, userID string) (Identity, error)
}

type memberKey struct {
	guildID string
	userID  string
}

// Resolver caches directory lookups. It is safe for concurrent use.
// Entries are never evicted; the member map is bounded by guild membership.
type Resolver struct {
	dir Directory

	mu      sync.RWMutex
	members map[memberKey]Identity
	users   map[string]Identity
	// usernames maps a lowercased username within a guild to a user id.
	usernames map[memberKey]string
}

// NewResolver creates an empty Resolver on top of dir.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{
		dir:     dir,
		members:   make(map[memberKey]Identity),
		users:     make(map[string]Identity),
		usernames: make(map[memberKey]string),
	}
}

// ResolveMember returns the identity of a guild member.
func (r *Resolver) ResolveMember(ctx context.Context, guildID, userID string) (Identity, error) {
	key := memberKey{guildID: guildID, userID: userID}

	r.mu.RLock()
	id, ok := r.members[key]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := r.dir.Member(ctx, guildID, userID)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve member %s in %s: %w", userID, guildID, err)
	}

	r.Update(guildID, id)
	return id, nil
}

// ResolveUser returns the global identity of a user.
func (r *Resolver) ResolveUser(ctx context.Context, userID string) (Identity, error) {
	r.mu.RLock()
	id, ok := r.users[userID]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := r.dir.User(ctx, userID)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve user %s: %w", userID, err)
	}

	r.mu.Lock()
	r.users[userID] = id
	r.mu.Unlock()
	return id, nil
}

// Resolve prefers the member identity and falls back to the global user,
// e.g. when the user left the guild.
func (r *Resolver) Resolve(ctx context.Context, guildID, userID string) (Identity, error) {
	id, err := r.ResolveMember(ctx, guildID, userID)
	if err == nil {
		return id, nil
	}

	log.Debug().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("Member lookup failed, falling back to user")
	return r.ResolveUser(ctx, userID)
}

// Lookup returns a cached identity without calling the directory.
func (r *Resolver) Lookup(guildID, userID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.members[memberKey{guildID: guildID, userID: userID}]; ok {
		return id, true
	}
	id, ok := r.users[userID]
	return id, ok
}

// LookupUsername returns the cached member of a guild going by username.
// The leading "@" is optional and the match ignores case.
func (r *Resolver) LookupUsername(guildID, username string) (Identity, bool) {
	key := memberKey{guildID: guildID, userID: normalizeUsername(username)}
	if key.userID == "" {
		return Identity{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.usernames[key]
	if !ok {
		return Identity{}, false
	}
	id, ok := r.members[memberKey{guildID: guildID, userID: userID}]
	return id, ok
}

// Update stores a member identity pushed by a membership event.
func (r *Resolver) Update(guildID string, id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(guildID, id)
}

// BatchUpdate stores many member identities at once.
func (r *Resolver) BatchUpdate(guildID string, ids []Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.put(guildID, id)
	}
}

// Remove drops a member who left the guild. The global user entry is kept.
func (r *Resolver) Remove(guildID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memberKey{guildID: guildID, userID: userID}
	if old, ok := r.members[key]; ok {
		r.dropUsername(guildID, old)
	}
	delete(r.members, key)
}

// Len returns the number of cached members and users.
func (r *Resolver) Len() (members, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members), len(r.users)
}

func (r *Resolver) put(guildID string, id Identity) {
	key := memberKey{guildID: guildID, userID: id.UserID}
	if old, ok := r.members[key]; ok {
		r.dropUsername(guildID, old)
	}
	r.members[key] = id
	r.users[id.UserID] = id

	if name := normalizeUsername(id.Username); name != "" {
		r.usernames[memberKey{guildID: guildID, userID: name}] = id.UserID
	}
}

// dropUsername unindexes the username of a cached member, unless another member took it since.
func (r *Resolver) dropUsername(guildID string, old Identity) {
	key := memberKey{guildID: guildID, userID: normalizeUsername(old.Username)}
	if key.userID != "" && r.usernames[key] == old.UserID {
		delete(r.usernames, key)
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
