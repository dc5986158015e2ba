// Package eventpack builds EventPacks — ±300 ms windowed snapshots of the
// ring buffer taken on a trigger (discrepancy, veto, abstain, TTL expiry,
// task outcome) — for post-hoc audit.
package eventpack

import "github.com/bandedctl/harness/internal/ringbuf"

// WindowS is the half-width of the assembled window in seconds.
const WindowS = 0.300

// Counters tracks the three counters the assembler records but never
// computes itself: abstain, veto, ttl_expired.
type Counters struct {
	Abstain    int
	Veto       int
	TTLExpired int
}

// Risk is the optional risk-gate snapshot merged into Meta under the
// "risk" key.
type Risk struct {
	U float64
	H float64
	R float64
}

// EnvMeta is the optional environment snapshot merged into Meta under
// the "env" key.
type EnvMeta struct {
	Backend  string
	Dt       float64
	Substeps int
}

// SignalsQuality is the optional signal-provenance snapshot merged into
// Meta under the "signals_quality" key. Contacts must be one of
// "placeholder" or "measured".
type SignalsQuality struct {
	Contacts string
}

// EventPack is the assembled audit record.
type EventPack struct {
	T0            float64
	T1            float64
	Signals       []ringbuf.Entry
	Meta          map[string]any
	Discrepancies []string
	Adapter       map[string]any // nil when no adapter was active at trigger
	Outcome       map[string]any // nil when no outcome is attached
}

// MetaProvider supplies the base meta map (config_hash, physics_hash,
// sim_seed, band_clocks, caps, loop_stats, missed_cycles, when the
// provider has them) at assembly time; a nil map is treated as empty. The
// assembler itself is agnostic to their shape beyond merging the optional
// fields below into the result. The harness passes a provider that
// returns nil and sets config_hash, physics_hash, sim_seed, loop_stats
// and missed_cycles on the assembled pack's Meta itself.
type MetaProvider func() map[string]any

// Assembler builds EventPacks by slicing a RingBuffer around a trigger
// time and asking a MetaProvider for the fixed meta keys.
type Assembler struct {
	ring         *ringbuf.Buffer
	metaProvider MetaProvider
}

// New returns an Assembler reading from ring and ring's meta from
// metaProvider.
func New(ring *ringbuf.Buffer, metaProvider MetaProvider) *Assembler {
	return &Assembler{ring: ring, metaProvider: metaProvider}
}

// Options carries the assemble-time optional fields. Any zero-value
// (nil/empty) field is omitted from the resulting EventPack/Meta, mirroring
// the source's "if X is not None" merge behavior.
type Options struct {
	Discrepancies  []string
	Adapter        map[string]any
	Outcome        map[string]any
	Counters       *Counters
	EnvMeta        *EnvMeta
	Risk           *Risk
	SignalsQuality *SignalsQuality
}

// Assemble sets t0 = triggerT - WindowS, t1 = triggerT + WindowS, pulls
// signals from the ring buffer's window, obtains Meta from the
// MetaProvider, and merges any present optional fields into Meta under
// the fixed keys "counters", "env", "risk", "signals_quality".
func (a *Assembler) Assemble(triggerT float64, opts Options) EventPack {
	t0 := triggerT - WindowS
	t1 := triggerT + WindowS
	signals := a.ring.Window(t0, t1)

	meta := a.metaProvider()
	if meta == nil {
		meta = map[string]any{}
	}

	if opts.Counters != nil {
		meta["counters"] = map[string]int{
			"abstain":     opts.Counters.Abstain,
			"veto":        opts.Counters.Veto,
			"ttl_expired": opts.Counters.TTLExpired,
		}
	}
	if opts.EnvMeta != nil {
		meta["env"] = map[string]any{
			"backend":  opts.EnvMeta.Backend,
			"dt":       opts.EnvMeta.Dt,
			"substeps": opts.EnvMeta.Substeps,
		}
	}
	if opts.Risk != nil {
		meta["risk"] = map[string]float64{
			"U": opts.Risk.U,
			"H": opts.Risk.H,
			"r": opts.Risk.R,
		}
	}
	if opts.SignalsQuality != nil {
		meta["signals_quality"] = map[string]string{
			"contacts": opts.SignalsQuality.Contacts,
		}
	}

	discrepancies := opts.Discrepancies
	if discrepancies == nil {
		discrepancies = []string{}
	}

	return EventPack{
		T0:            t0,
		T1:            t1,
		Signals:       signals,
		Meta:          meta,
		Discrepancies: discrepancies,
		Adapter:       opts.Adapter,
		Outcome:       opts.Outcome,
	}
}
