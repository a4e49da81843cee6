package badge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	stakeerrors "stakebadge/core/errors"
	"stakebadge/core/events"
)

var (
	// ErrUnauthorized is returned for mint, burn, transfer or ownership calls
	// from anyone but the registry owner.
	ErrUnauthorized       = stakeerrors.ErrUnauthorizedRegistryCall
	ErrBadgeNotFound      = errors.New("badge: badge not found")
	ErrNotInitialized     = errors.New("badge: registry not initialized")
	ErrAlreadyInitialized = errors.New("badge: registry already initialized")
	ErrZeroAddress        = errors.New("badge: zero address")
	ErrNotHolder          = errors.New("badge: transfer from address that does not hold the badge")
	errNilState           = errors.New("badge: state not configured")
)

var (
	ownerKey   = []byte("badge/owner")
	baseURIKey = []byte("badge/baseURI")
	nextIDKey  = []byte("badge/nextId")
)

func badgeKey(id uint64) []byte {
	return []byte("badge/token/" + strconv.FormatUint(id, 10))
}

func holderKey(addr [20]byte) []byte {
	return append([]byte("badge/holder/"), addr[:]...)
}

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Badge is a unique, non-fungible reward token. URI holds the suffix appended
// to the registry base URI.
type Badge struct {
	ID    uint64
	Owner [20]byte
	URI   string
}

// Registry keeps the unique badges and enforces that only its owner can mint,
// burn or move them.
type Registry struct {
	st      registryState
	emitter events.Emitter
}

// NewRegistry creates a registry backed by the provided state.
func NewRegistry(st registryState) *Registry {
	return &Registry{st: st, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used to broadcast registry updates.
// Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Init records the administrative owner and base URI. It can run only once.
func (r *Registry) Init(owner [20]byte, baseURI string) error {
	if r == nil || r.st == nil {
		return errNilState
	}
	if isZero(owner) {
		return ErrZeroAddress
	}
	exists, err := r.st.KVGet(ownerKey, nil)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInitialized
	}
	if err := r.st.KVPut(ownerKey, owner); err != nil {
		return err
	}
	return r.st.KVPut(baseURIKey, strings.TrimSpace(baseURI))
}

// Initialized reports whether Init has run against the current state.
func (r *Registry) Initialized() (bool, error) {
	if r == nil || r.st == nil {
		return false, errNilState
	}
	return r.st.KVGet(ownerKey, nil)
}

// Owner returns the administrative owner.
func (r *Registry) Owner() ([20]byte, error) {
	var owner [20]byte
	if r == nil || r.st == nil {
		return owner, errNilState
	}
	ok, err := r.st.KVGet(ownerKey, &owner)
	if err != nil {
		return owner, err
	}
	if !ok {
		return owner, ErrNotInitialized
	}
	return owner, nil
}

// BaseURI returns the prefix shared by every badge URI.
func (r *Registry) BaseURI() (string, error) {
	var base string
	if r == nil || r.st == nil {
		return "", errNilState
	}
	if _, err := r.st.KVGet(baseURIKey, &base); err != nil {
		return "", err
	}
	return base, nil
}

func (r *Registry) requireOwner(caller [20]byte) error {
	owner, err := r.Owner()
	if err != nil {
		return err
	}
	if caller != owner {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership hands administrative control to next.
func (r *Registry) TransferOwnership(caller, next [20]byte) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if isZero(next) {
		return ErrZeroAddress
	}
	if err := r.st.KVPut(ownerKey, next); err != nil {
		return err
	}
	r.emitter.Emit(events.BadgeOwnershipTransferred{Previous: caller, Next: next})
	return nil
}

// Mint creates a badge for to tagged with uriSuffix and returns its id. Ids
// start at 1 and are never reused.
func (r *Registry) Mint(caller, to [20]byte, uriSuffix string) (uint64, error) {
	if err := r.requireOwner(caller); err != nil {
		return 0, err
	}
	if isZero(to) {
		return 0, ErrZeroAddress
	}
	var last uint64
	if _, err := r.st.KVGet(nextIDKey, &last); err != nil {
		return 0, err
	}
	id := last + 1
	badge := &Badge{ID: id, Owner: to, URI: uriSuffix}
	if err := r.st.KVPut(nextIDKey, id); err != nil {
		return 0, err
	}
	if err := r.st.KVPut(badgeKey(id), badge); err != nil {
		return 0, err
	}
	if err := r.adjustHolding(to, 1); err != nil {
		return 0, err
	}
	uri, err := r.TokenURI(id)
	if err != nil {
		return 0, err
	}
	r.emitter.Emit(events.BadgeMinted{ID: id, Owner: to, URI: uri})
	return id, nil
}

// Burn destroys the badge. The id can no longer be resolved afterwards.
func (r *Registry) Burn(caller [20]byte, id uint64) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	badge, err := r.get(id)
	if err != nil {
		return err
	}
	if err := r.st.KVDelete(badgeKey(id)); err != nil {
		return err
	}
	if err := r.adjustHolding(badge.Owner, -1); err != nil {
		return err
	}
	r.emitter.Emit(events.BadgeBurned{ID: id, Owner: badge.Owner})
	return nil
}

// TransferFrom moves a badge between holders. Holders cannot move their own
// badges; only the registry owner can.
func (r *Registry) TransferFrom(caller, from, to [20]byte, id uint64) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if isZero(to) {
		return ErrZeroAddress
	}
	badge, err := r.get(id)
	if err != nil {
		return err
	}
	if badge.Owner != from {
		return ErrNotHolder
	}
	badge.Owner = to
	if err := r.st.KVPut(badgeKey(id), badge); err != nil {
		return err
	}
	if err := r.adjustHolding(from, -1); err != nil {
		return err
	}
	if err := r.adjustHolding(to, 1); err != nil {
		return err
	}
	r.emitter.Emit(events.BadgeTransferred{ID: id, From: from, To: to})
	return nil
}

// OwnerOf returns the current holder of the badge.
func (r *Registry) OwnerOf(id uint64) ([20]byte, error) {
	badge, err := r.get(id)
	if err != nil {
		return [20]byte{}, err
	}
	return badge.Owner, nil
}

// TokenURI returns the badge metadata URI: base URI followed by the suffix.
func (r *Registry) TokenURI(id uint64) (string, error) {
	badge, err := r.get(id)
	if err != nil {
		return "", err
	}
	base, err := r.BaseURI()
	if err != nil {
		return "", err
	}
	return base + badge.URI, nil
}

// BalanceOf returns the number of badges held by holder.
func (r *Registry) BalanceOf(holder [20]byte) (uint64, error) {
	if r == nil || r.st == nil {
		return 0, errNilState
	}
	var count uint64
	if _, err := r.st.KVGet(holderKey(holder), &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Registry) get(id uint64) (*Badge, error) {
	if r == nil || r.st == nil {
		return nil, errNilState
	}
	badge := new(Badge)
	ok, err := r.st.KVGet(badgeKey(id), badge)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBadgeNotFound, id)
	}
	return badge, nil
}

func (r *Registry) adjustHolding(holder [20]byte, delta int) error {
	count, err := r.BalanceOf(holder)
	if err != nil {
		return err
	}
	switch {
	case delta > 0:
		count += uint64(delta)
	case count > 0:
		count--
	}
	return r.st.KVPut(holderKey(holder), count)
}

func isZero(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
