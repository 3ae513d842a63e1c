package hotkeys

import (
	"log/slog"
	"strings"

	"github.com/BurntSushi/xgb/xproto"

	"wmkeys/internal/keysym"
)

// KeysymResolver resolves key names to keysyms.
type KeysymResolver interface {
	// LookupStrict matches the name exactly.
	LookupStrict(name string) (xproto.Keysym, bool)
	// LookupRelaxed matches the case-normalized name.
	LookupRelaxed(name string) (xproto.Keysym, bool)
}

// Registry holds shortcuts in insertion order and answers key event lookups.
//
// Registry is not safe for concurrent use. Wrap it in a Manager when Add and
// Handle can run on different goroutines.
type Registry struct {
	binds          []*Binding
	ghostModifiers ModMask
	delimiter      rune
	resolver       KeysymResolver
	logger         *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithResolver replaces the built-in X11 keysym table.
func WithResolver(r KeysymResolver) Option {
	return func(reg *Registry) {
		if r != nil {
			reg.resolver = r
		}
	}
}

// WithLogger sets the logger used for registration records.
func WithLogger(l *slog.Logger) Option {
	return func(reg *Registry) {
		if l != nil {
			reg.logger = l
		}
	}
}

// New creates an empty registry splitting shortcuts on delimiter and
// ignoring the ghost modifiers when matching.
func New(delimiter rune, ghost ModMask, opts ...Option) *Registry {
	r := &Registry{
		ghostModifiers: ghost,
		delimiter:      delimiter,
		resolver:       keysym.Default(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefault creates a registry using '+' as delimiter and ignoring
// NumLock, ScrollLock and CapsLock.
func NewDefault(opts ...Option) *Registry {
	return New('+', DefaultGhostModifiers, opts...)
}

// Delimiter returns the token delimiter.
func (r *Registry) Delimiter() rune { return r.delimiter }

// LookupKey resolves a key name the way Add does.
func (r *Registry) LookupKey(name string) (xproto.Keysym, bool) {
	return resolveKey(r.resolver, strings.TrimSpace(name))
}

// GhostModifiers returns the modifiers ignored by Handle.
func (r *Registry) GhostModifiers() ModMask { return r.ghostModifiers }

// Len returns the number of registered bindings.
func (r *Registry) Len() int { return len(r.binds) }

// Bindings returns the registered bindings in insertion order.
// The slice is a copy; the bindings themselves are shared and immutable.
func (r *Registry) Bindings() []*Binding {
	out := make([]*Binding, len(r.binds))
	copy(out, r.binds)
	return out
}

// Add parses a shortcut like "super + shift + d" and binds action to it.
//
// The last token is the key; every other token must be a modifier alias.
// Duplicates are detected on the exact spec text only, so two spellings of
// the same shortcut are both accepted. On error the registry is unchanged.
func (r *Registry) Add(spec string, action Action) error {
	if action == nil {
		return &ParseError{Spec: spec, Err: ErrNilAction}
	}
	for _, b := range r.binds {
		if b.origin == spec {
			return &ParseError{Spec: spec, Err: ErrDuplicateBinding}
		}
	}

	tokens := tokenize(spec, r.delimiter)
	if len(tokens) == 0 {
		return &ParseError{Spec: spec, Err: ErrMissingKey}
	}
	keyName := tokens[len(tokens)-1]

	key, ok := resolveKey(r.resolver, keyName)
	if !ok {
		return &ParseError{Spec: spec, Token: keyName, Err: ErrUnknownKey}
	}

	mods, err := resolveModifiers(spec, tokens[:len(tokens)-1])
	if err != nil {
		return err
	}

	r.binds = append(r.binds, &Binding{
		origin:    spec,
		modifiers: mods,
		key:       key,
		action:    action,
	})
	r.logger.Debug("[DEBUG-HOTKEY] binding registered",
		"origin", spec, "modifiers", mods.String(), "keysym", uint32(key))
	return nil
}

// Handle returns the first binding whose modifiers equal mods once the ghost
// modifiers are added to both sides, and whose key equals key. It returns nil
// when nothing matches.
func (r *Registry) Handle(mods ModMask, key xproto.Keysym) *Binding {
	want := mods | r.ghostModifiers
	for _, b := range r.binds {
		if b.key == key && b.modifiers|r.ghostModifiers == want {
			return b
		}
	}
	return nil
}
