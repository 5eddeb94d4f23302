package realtime

import (
    "context"
    "database/sql"
    "errors"
    "log"
    "strconv"
    "sync"

    "github.com/iliyamo/hotel-operations/internal/health"
    "github.com/iliyamo/hotel-operations/internal/model"
    "github.com/iliyamo/hotel-operations/internal/repository"
    "github.com/iliyamo/hotel-operations/internal/utils"
)

// Role-wide channel names.  Station channels are derived with
// StationChannel.
const (
    ChannelWaiters  = "waiters"
    ChannelManagers = "managers"
)

// ErrAuth is returned for bad or expired credentials and for accounts
// that are inactive or missing.
var ErrAuth = errors.New("authentication failed")

// ErrChannelForbidden is returned when a connection's role does not
// admit membership of the requested channel.
var ErrChannelForbidden = errors.New("channel not permitted for role")

// StationChannel returns the channel name of a kitchen station.
func StationChannel(station string) string { return "kitchen-" + station }

// UserChannel returns the private channel name of a user.
func UserChannel(userID uint64) string { return "user-" + strconv.FormatUint(userID, 10) }

// Registry tracks live realtime connections and their channel
// membership.  It is constructed once at startup and passed by handle
// to every handler; there is no ambient global connection state.  All
// maps are guarded by a single RWMutex: membership writes happen only
// from a connection's own lifecycle events while fan-out takes a
// read-locked snapshot.
type Registry struct {
    users  *repository.UserRepo
    sup    *health.Supervisor
    secret string

    mu       sync.RWMutex
    conns    map[string]*Conn                    // connection ID -> connection
    byUser   map[uint64]map[string]*Conn         // user ID -> its connections
    channels map[string]map[string]*Conn         // channel name -> connection ID -> connection
    joined   map[string]map[string]struct{}      // connection ID -> channel names
}

// NewRegistry constructs a Registry.  The supervisor wraps the identity
// lookup performed at connect time.
func NewRegistry(users *repository.UserRepo, sup *health.Supervisor, secret string) *Registry {
    if users == nil || sup == nil {
        panic("nil dependency passed to NewRegistry")
    }
    return &Registry{
        users:    users,
        sup:      sup,
        secret:   secret,
        conns:    map[string]*Conn{},
        byUser:   map[uint64]map[string]*Conn{},
        channels: map[string]map[string]*Conn{},
        joined:   map[string]map[string]struct{}{},
    }
}

// Authenticate verifies a credential token and confirms the referenced
// account is still active.  An invalid or expired token always fails
// with ErrAuth.  When the account lookup itself fails with a transient
// storage error after retries, the registry falls back to a degraded
// identity derived solely from token claims instead of rejecting the
// connection: availability of realtime coordination is prioritized over
// perfect authorization freshness.  Degraded identities may only join
// their own user channel (see channelAllowed).
func (r *Registry) Authenticate(ctx context.Context, token string) (Identity, error) {
    claims, err := utils.ParseAccessToken(r.secret, token)
    if err != nil {
        return Identity{}, ErrAuth
    }
    var u model.User
    lookupErr := r.sup.Do(ctx, "registry identity lookup", func(ctx context.Context) error {
        var err error
        u, err = r.users.GetByID(ctx, claims.UserID)
        return err
    })
    if lookupErr == nil {
        if !u.IsActive {
            return Identity{}, ErrAuth
        }
        // The stored role wins over the token's claim.
        return Identity{UserID: u.ID, Role: u.Role}, nil
    }
    if !degradedEligible(lookupErr) {
        log.Printf("realtime: identity lookup failed for user %d: %v", claims.UserID, lookupErr)
        return Identity{}, ErrAuth
    }
    log.Printf("realtime: identity lookup degraded for user %d: %v", claims.UserID, lookupErr)
    return Identity{UserID: claims.UserID, Role: claims.Role, Degraded: true}, nil
}

// degradedEligible reports whether a failed identity lookup may fall
// back to a token-claim identity.  Only transient storage failures
// qualify; a definitive no-such-user answer and permanent storage
// errors reject the connection outright.
func degradedEligible(err error) bool {
    if errors.Is(err, sql.ErrNoRows) {
        return false
    }
    return repository.IsTransient(err)
}

// Register admits an authenticated connection into the registry.
func (r *Registry) Register(c *Conn) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.conns[c.ID] = c
    if r.byUser[c.Identity.UserID] == nil {
        r.byUser[c.Identity.UserID] = map[string]*Conn{}
    }
    r.byUser[c.Identity.UserID][c.ID] = c
    r.joined[c.ID] = map[string]struct{}{}
    log.Printf("realtime: connection %s registered (user=%d role=%s degraded=%t, %d total)",
        c.ID, c.Identity.UserID, c.Identity.Role, c.Identity.Degraded, len(r.conns))
}

// Join adds a connection to a channel after validating that the channel
// is permitted for its role.  Joining twice is a no-op.
func (r *Registry) Join(c *Conn, channel string) error {
    if !channelAllowed(c.Identity, channel) {
        return ErrChannelForbidden
    }
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, ok := r.conns[c.ID]; !ok {
        return ErrChannelForbidden
    }
    if r.channels[channel] == nil {
        r.channels[channel] = map[string]*Conn{}
    }
    r.channels[channel][c.ID] = c
    r.joined[c.ID][channel] = struct{}{}
    return nil
}

// Leave removes a connection from a channel.  Leaving a channel that
// was never joined is a no-op.
func (r *Registry) Leave(c *Conn, channel string) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.removeFromChannel(c.ID, channel)
}

// Disconnect removes a connection from every channel index and from the
// identity map, then shuts the connection down.  It is idempotent:
// calling it twice for the same connection does nothing the second
// time and never panics.  The outbound queue is never closed; a
// broadcast holding a pre-disconnect member snapshot sees the closed
// flag in enqueue and drops the envelope instead.
func (r *Registry) Disconnect(c *Conn) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, ok := r.conns[c.ID]; !ok {
        return
    }
    for channel := range r.joined[c.ID] {
        r.removeFromChannel(c.ID, channel)
    }
    delete(r.joined, c.ID)
    delete(r.conns, c.ID)
    if m := r.byUser[c.Identity.UserID]; m != nil {
        delete(m, c.ID)
        if len(m) == 0 {
            delete(r.byUser, c.Identity.UserID)
        }
    }
    c.shutdown()
    log.Printf("realtime: connection %s disconnected (%d total)", c.ID, len(r.conns))
}

// removeFromChannel must be called with the lock held.
func (r *Registry) removeFromChannel(connID, channel string) {
    if m := r.channels[channel]; m != nil {
        delete(m, connID)
        if len(m) == 0 {
            delete(r.channels, channel)
        }
    }
    if j := r.joined[connID]; j != nil {
        delete(j, channel)
    }
}

// ChannelMembers returns a snapshot of the connections currently joined
// to a channel.
func (r *Registry) ChannelMembers(channel string) []*Conn {
    r.mu.RLock()
    defer r.mu.RUnlock()
    out := make([]*Conn, 0, len(r.channels[channel]))
    for _, c := range r.channels[channel] {
        out = append(out, c)
    }
    return out
}

// Broadcast delivers one envelope to the union of the given channels'
// members, at most once per connection even when a connection belongs
// to several of the recipient channels.
func (r *Registry) Broadcast(channels []string, env Envelope) {
    r.mu.RLock()
    targets := make(map[string]*Conn)
    for _, ch := range channels {
        for id, c := range r.channels[ch] {
            targets[id] = c
        }
    }
    r.mu.RUnlock()
    for _, c := range targets {
        if !c.enqueue(env) {
            log.Printf("realtime: dropping %s for slow connection %s", env.Event, c.ID)
        }
    }
}

// channelAllowed validates a join request against the connection's
// role.  Every identity may join its own user channel; everything else
// requires a DB-verified (non-degraded) identity with the right role.
func channelAllowed(id Identity, channel string) bool {
    if channel == UserChannel(id.UserID) {
        return true
    }
    if id.Degraded {
        return false
    }
    switch channel {
    case ChannelManagers:
        return id.Role == model.RoleManager
    case ChannelWaiters:
        return id.Role == model.RoleWaiter || id.Role == model.RoleManager
    case StationChannel(model.StationChef):
        return id.Role == model.RoleChef
    case StationChannel(model.StationBartender):
        return id.Role == model.RoleBartender
    }
    // Unknown channel names, including other users' private channels.
    return false
}
