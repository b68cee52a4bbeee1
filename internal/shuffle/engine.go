// Package shuffle implements the five-phase verifiable shuffle: every
// participant submits one onion-encrypted message, the ring peels it one
// layer per hop while reshuffling, and once everyone agrees on the
// resulting bag, round keys are revealed so the cleartext permutation can
// be recovered.
package shuffle

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"math/rand"

	"dissent/internal/errs"
	"dissent/internal/primitives"
	"dissent/internal/session"
	"dissent/internal/wire"
)

// State names a point in the five-phase state machine.
type State int

const (
	StateInit State = iota
	StateKeyExchange
	StateSubmit
	StateAnonymize
	StateVerify
	StateReveal
	StateDone
	StateAborted
)

// Engine runs one shuffle round for a single participant.
type Engine struct {
	P       *session.Participant
	Net     Net
	Metrics *session.RoundMetrics
	KeyBook *session.KeyBook

	state State

	roundKey1 *rsa.PrivateKey // ring-peel key, published as KeyBookEntry.PrimaryPub
	roundKey2 *rsa.PrivateKey // data-layer key, published as KeyBookEntry.SecondaryPub

	cipher      []byte // plaintext wrapped under every node's key2 then every node's key1
	cipherPrime []byte // plaintext wrapped under every node's key2 only

	bag      [][]byte // working ciphertext set, mutates through Anonymize
	finalBag [][]byte // bag as broadcast by the leader at the start of Verify
}

// NewEngine returns an Engine ready to Run a round for p.
func NewEngine(p *session.Participant, net Net, metrics *session.RoundMetrics) *Engine {
	return &Engine{
		P:       p,
		Net:     net,
		Metrics: metrics,
		KeyBook: session.NewKeyBook(p.N),
		state:   StateInit,
	}
}

// State reports the engine's current phase.
func (e *Engine) State() State { return e.state }

// ExchangeKeys runs KeyExchange alone, without the rest of the round. Bulk
// uses this to establish its own seed-wrapping key pair over the same wire
// format Shuffle uses for its onion keys, before separately running a full
// Shuffle round to anonymize its descriptors.
func (e *Engine) ExchangeKeys(ctx context.Context) error {
	if err := e.phase1KeyExchange(ctx); err != nil {
		e.state = StateAborted
		return &errs.RoundError{Phase: int(StateKeyExchange), Err: err}
	}
	return nil
}

// RoundKeys returns the key pair generated by ExchangeKeys (or by Run's own
// internal KeyExchange phase).
func (e *Engine) RoundKeys() (key1, key2 *rsa.PrivateKey) {
	return e.roundKey1, e.roundKey2
}

// Run drives all five phases in order for plaintext, padded to slotLen,
// returning the recovered anonymous plaintext set on success. An error
// from any phase aborts the round; e.state is left at StateAborted so
// callers can distinguish a clean completion from a blamed failure.
func (e *Engine) Run(ctx context.Context, plaintext []byte, slotLen int) ([][]byte, error) {
	padded, err := wire.PadToLength(plaintext, slotLen)
	if err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateSubmit), Err: err}
	}

	if err := e.phase1KeyExchange(ctx); err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateKeyExchange), Err: err}
	}
	if err := e.phase2Submit(ctx, padded); err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateSubmit), Err: err}
	}
	if err := e.phase3Anonymize(ctx); err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateAnonymize), Err: err}
	}
	if err := e.phase4Verify(ctx); err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateVerify), Err: err}
	}
	out, err := e.phase5Reveal(ctx)
	if err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateReveal), Err: err}
	}
	e.state = StateDone
	return out, nil
}

// phase1KeyExchange generates this round's onion key pair and exchanges
// every participant's key material via the leader. Per spec §4.3 Phase 1,
// trust in a participant's primary key is established trust-on-first-use:
// every Phase1Report and the leader's KeyBookAnnounce are self-certifying
// (the signature is checked against the primary key embedded in the very
// message it signs), never against a pre-shared identity roster. Once a
// primary key has been accepted this way, it signs everything else the
// round exchanges — including the secondary key, which therefore arrives
// under a signed attestation rather than its own TOFU check.
func (e *Engine) phase1KeyExchange(ctx context.Context) error {
	e.state = StateKeyExchange
	e.Metrics.Start("key_exchange")
	defer e.Metrics.Stop("key_exchange")

	k1, err := primitives.GenerateKeyPair()
	if err != nil {
		return err
	}
	k2, err := primitives.GenerateKeyPair()
	if err != nil {
		return err
	}
	e.roundKey1, e.roundKey2 = k1, k2

	k1PEM, err := wire.EncodePublicKey(&k1.PublicKey)
	if err != nil {
		return err
	}
	k2PEM, err := wire.EncodePublicKey(&k2.PublicKey)
	if err != nil {
		return err
	}
	myEntry := wire.KeyBookEntry{PrimaryPub: k1PEM, SecondaryPub: k2PEM}

	if e.P.IsLeader() {
		reports, err := e.Net.CollectFromAll(ctx)
		if err != nil {
			return err
		}
		if err := e.KeyBook.Add(e.P.ID, myEntry); err != nil {
			return err
		}
		for _, raw := range reports {
			var env wire.SignedEnvelope
			if err := wire.Deserialize(raw, &env); err != nil {
				return err
			}
			var rep wire.Phase1Report
			if err := wire.Deserialize(env.Payload, &rep); err != nil {
				return err
			}
			if env.SenderID != rep.ID {
				return &errs.ProtocolViolation{PeerID: rep.ID, Reason: errs.MalformedPayload, Detail: "envelope sender id mismatch"}
			}
			primaryPub, err := wire.DecodePublicKey(rep.PrimaryPub)
			if err != nil {
				return err
			}
			if _, err := wire.Open(primaryPub, env); err != nil {
				return err
			}
			if rep.RoundID != e.P.RoundID {
				return &errs.ProtocolViolation{PeerID: rep.ID, Reason: errs.RoundMismatch}
			}
			if err := e.KeyBook.Add(rep.ID, wire.KeyBookEntry{PrimaryPub: rep.PrimaryPub, SecondaryPub: rep.SecondaryPub}); err != nil {
				return err
			}
		}
		if !e.KeyBook.Complete() {
			return &errs.ProtocolViolation{PeerID: -1, Reason: errs.MissingCiphertext, Detail: "key exchange incomplete"}
		}

		announce := wire.KeyBookAnnounce{RoundID: e.P.RoundID, N: e.P.N, Entries: e.keyBookEntries()}
		payload, err := e.sealFor(announce)
		if err != nil {
			return err
		}
		return e.Net.BroadcastFromLeader(ctx, payload)
	}

	rep := wire.Phase1Report{
		ID: e.P.ID, RoundID: e.P.RoundID,
		IP: e.P.Peers[e.P.ID].IP, Port: e.P.Peers[e.P.ID].Port,
		PrimaryPub: k1PEM, SecondaryPub: k2PEM,
	}
	payload, err := e.sealFor(rep)
	if err != nil {
		return err
	}
	if err := e.Net.SendToLeader(ctx, payload); err != nil {
		return err
	}

	raw, err := e.Net.RecvFromLeader(ctx)
	if err != nil {
		return err
	}
	var env wire.SignedEnvelope
	if err := wire.Deserialize(raw, &env); err != nil {
		return err
	}
	var announce wire.KeyBookAnnounce
	if err := wire.Deserialize(env.Payload, &announce); err != nil {
		return err
	}
	if env.SenderID != 0 {
		return &errs.ProtocolViolation{PeerID: 0, Reason: errs.MalformedPayload, Detail: "announce not from leader"}
	}
	leaderEntry, ok := announce.Entries[0]
	if !ok {
		return &errs.ProtocolViolation{PeerID: 0, Reason: errs.MalformedPayload, Detail: "announce missing leader's own entry"}
	}
	leaderPub, err := wire.DecodePublicKey(leaderEntry.PrimaryPub)
	if err != nil {
		return err
	}
	if _, err := wire.Open(leaderPub, env); err != nil {
		return err
	}
	if announce.RoundID != e.P.RoundID {
		return &errs.ProtocolViolation{PeerID: 0, Reason: errs.RoundMismatch}
	}
	for id, entry := range announce.Entries {
		if err := e.KeyBook.Add(id, entry); err != nil {
			return err
		}
	}
	if !e.KeyBook.Complete() {
		return &errs.ProtocolViolation{PeerID: 0, Reason: errs.MissingCiphertext, Detail: "announce incomplete"}
	}
	return nil
}

// phase2Submit builds this node's onion ciphertext and routes it to the
// leader, who assembles the initial bag.
func (e *Engine) phase2Submit(ctx context.Context, padded []byte) error {
	e.state = StateSubmit
	e.Metrics.Start("submit")
	defer e.Metrics.Stop("submit")

	key2Pubs, err := e.orderedKeys(e.KeyBook.Secondary)
	if err != nil {
		return err
	}
	key1Pubs, err := e.orderedKeys(e.KeyBook.Primary)
	if err != nil {
		return err
	}

	cipherPrime, err := BuildOnion(key2Pubs, padded)
	if err != nil {
		return err
	}
	cipher, err := BuildOnion(key1Pubs, cipherPrime)
	if err != nil {
		return err
	}
	e.cipherPrime, e.cipher = cipherPrime, cipher

	sub := wire.Phase2Submission{SenderID: e.P.ID, RoundID: e.P.RoundID, Ciphertext: cipher}
	payload, err := e.sealFor(sub)
	if err != nil {
		return err
	}

	if e.P.IsLeader() {
		raws, err := e.Net.CollectFromAll(ctx)
		if err != nil {
			return err
		}
		e.bag = [][]byte{cipher}
		for _, raw := range raws {
			var env wire.SignedEnvelope
			if err := wire.Deserialize(raw, &env); err != nil {
				return err
			}
			var s wire.Phase2Submission
			if err := e.openSigned(env, &s); err != nil {
				return err
			}
			if s.RoundID != e.P.RoundID {
				return &errs.ProtocolViolation{PeerID: s.SenderID, Reason: errs.RoundMismatch}
			}
			e.bag = append(e.bag, s.Ciphertext)
		}
		return nil
	}

	return e.Net.SendToLeader(ctx, payload)
}

// phase3Anonymize ring-passes the bag: each node shuffles it and peels its
// own key1 layer before forwarding to its successor, starting and ending
// at the leader.
func (e *Engine) phase3Anonymize(ctx context.Context) error {
	e.state = StateAnonymize
	e.Metrics.Start("anonymize")
	defer e.Metrics.Stop("anonymize")

	if !e.P.IsLeader() {
		raw, err := e.Net.RecvFromPrev(ctx)
		if err != nil {
			return err
		}
		var in wire.Phase3Bag
		if err := wire.Deserialize(raw, &in); err != nil {
			return err
		}
		if in.RoundID != e.P.RoundID {
			return &errs.ProtocolViolation{PeerID: -1, Reason: errs.RoundMismatch}
		}
		e.bag = in.Ciphertexts
	}

	shuffled := make([][]byte, len(e.bag))
	copy(shuffled, e.bag)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	out := make([][]byte, len(shuffled))
	for i, ct := range shuffled {
		pt, err := PeelOnion(e.roundKey1, ct)
		if err != nil {
			return err
		}
		out[i] = pt
	}
	e.bag = out

	stage := e.P.ID + 1
	outBag := wire.Phase3Bag{RoundID: e.P.RoundID, Stage: stage, Ciphertexts: out}
	payload, err := wire.Serialize(outBag)
	if err != nil {
		return err
	}
	if err := e.Net.SendToNext(ctx, payload); err != nil {
		return err
	}

	if e.P.IsLeader() {
		raw, err := e.Net.RecvFromPrev(ctx)
		if err != nil {
			return err
		}
		var final wire.Phase3Bag
		if err := wire.Deserialize(raw, &final); err != nil {
			return err
		}
		if final.RoundID != e.P.RoundID {
			return &errs.ProtocolViolation{PeerID: -1, Reason: errs.RoundMismatch}
		}
		if final.Stage != e.P.N {
			return &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "ring did not complete a full pass"}
		}
		e.bag = final.Ciphertexts
	}
	return nil
}

// phase4Verify has the leader broadcast the final bag and every node,
// including the leader, confirm its own ciphertext survived and that
// everyone agrees on the same bag hash.
func (e *Engine) phase4Verify(ctx context.Context) error {
	e.state = StateVerify
	e.Metrics.Start("verify")
	defer e.Metrics.Stop("verify")

	if e.P.IsLeader() {
		payload, err := wire.Serialize(e.bag)
		if err != nil {
			return err
		}
		if err := e.Net.BroadcastFromLeader(ctx, payload); err != nil {
			return err
		}
		e.finalBag = e.bag
	} else {
		raw, err := e.Net.RecvFromLeader(ctx)
		if err != nil {
			return err
		}
		var bag [][]byte
		if err := wire.Deserialize(raw, &bag); err != nil {
			return err
		}
		e.finalBag = bag
	}

	hash, err := wire.HashList(e.finalBag)
	if err != nil {
		return err
	}

	goVote := containsBytes(e.finalBag, e.cipherPrime)
	vote := wire.Phase4GoVote{VoterID: e.P.ID, RoundID: e.P.RoundID, Go: goVote, Hash: hash}
	payload, err := e.sealFor(vote)
	if err != nil {
		return err
	}

	var votes []wire.Phase4GoVote
	if e.P.IsLeader() {
		raws, err := e.Net.CollectFromAll(ctx)
		if err != nil {
			return err
		}
		votes = append(votes, vote)
		for _, raw := range raws {
			var env wire.SignedEnvelope
			if err := wire.Deserialize(raw, &env); err != nil {
				return err
			}
			var v wire.Phase4GoVote
			if err := e.openSigned(env, &v); err != nil {
				return err
			}
			votes = append(votes, v)
		}
		votesPayload, err := wire.Serialize(votes)
		if err != nil {
			return err
		}
		if err := e.Net.BroadcastFromLeader(ctx, votesPayload); err != nil {
			return err
		}
	} else {
		if err := e.Net.SendToLeader(ctx, payload); err != nil {
			return err
		}
		raw, err := e.Net.RecvFromLeader(ctx)
		if err != nil {
			return err
		}
		if err := wire.Deserialize(raw, &votes); err != nil {
			return err
		}
	}

	for _, v := range votes {
		if v.RoundID != e.P.RoundID {
			return &errs.ProtocolViolation{PeerID: v.VoterID, Reason: errs.RoundMismatch}
		}
		if !v.Go {
			return &errs.ProtocolViolation{PeerID: v.VoterID, Reason: errs.GoFalse}
		}
		if !bytes.Equal(v.Hash, hash) {
			return &errs.ProtocolViolation{PeerID: v.VoterID, Reason: errs.BadHash}
		}
	}
	return nil
}

// phase5Reveal publishes every node's key2 and peels it from every entry
// in the final bag, recovering the anonymous plaintext set.
func (e *Engine) phase5Reveal(ctx context.Context) ([][]byte, error) {
	e.state = StateReveal
	e.Metrics.Start("reveal")
	defer e.Metrics.Stop("reveal")

	reveal := wire.Phase5Reveal{ID: e.P.ID, RoundID: e.P.RoundID, SecondaryPrivPEM: wire.EncodePrivateKey(e.roundKey2)}
	payload, err := e.sealFor(reveal)
	if err != nil {
		return nil, err
	}

	var reveals []wire.Phase5Reveal
	if e.P.IsLeader() {
		raws, err := e.Net.CollectFromAll(ctx)
		if err != nil {
			return nil, err
		}
		reveals = append(reveals, reveal)
		for _, raw := range raws {
			var env wire.SignedEnvelope
			if err := wire.Deserialize(raw, &env); err != nil {
				return nil, err
			}
			var r wire.Phase5Reveal
			if err := e.openSigned(env, &r); err != nil {
				return nil, err
			}
			reveals = append(reveals, r)
		}
		revealsPayload, err := wire.Serialize(reveals)
		if err != nil {
			return nil, err
		}
		if err := e.Net.BroadcastFromLeader(ctx, revealsPayload); err != nil {
			return nil, err
		}
	} else {
		if err := e.Net.SendToLeader(ctx, payload); err != nil {
			return nil, err
		}
		raw, err := e.Net.RecvFromLeader(ctx)
		if err != nil {
			return nil, err
		}
		if err := wire.Deserialize(raw, &reveals); err != nil {
			return nil, err
		}
	}

	priv := make([]*rsa.PrivateKey, e.P.N)
	for _, r := range reveals {
		if r.RoundID != e.P.RoundID {
			return nil, &errs.ProtocolViolation{PeerID: r.ID, Reason: errs.RoundMismatch}
		}
		key, err := wire.DecodePrivateKey(r.SecondaryPrivPEM)
		if err != nil {
			return nil, err
		}
		priv[r.ID] = key
	}
	for i, k := range priv {
		if k == nil {
			return nil, &errs.ProtocolViolation{PeerID: i, Reason: errs.MissingCiphertext, Detail: "no key2 reveal"}
		}
	}

	out := make([][]byte, 0, len(e.finalBag))
	for _, ct := range e.finalBag {
		unpadded, err := PeelAll(priv, ct)
		if err != nil {
			return nil, err
		}
		pt, err := wire.Unpad(unpadded)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, nil
}

// sealFor serializes msg and wraps it in a SignedEnvelope under this
// round's own primary key.
func (e *Engine) sealFor(msg any) ([]byte, error) {
	body, err := wire.Serialize(msg)
	if err != nil {
		return nil, err
	}
	env, err := wire.Seal(e.roundKey1, e.P.ID, body)
	if err != nil {
		return nil, err
	}
	return wire.Serialize(env)
}

// openSigned verifies env against its claimed sender's primary key, as
// established in the KeyBook during Phase 1's trust-on-first-use exchange,
// and deserializes the payload into out.
func (e *Engine) openSigned(env wire.SignedEnvelope, out any) error {
	pub, err := e.KeyBook.Primary(env.SenderID)
	if err != nil {
		return err
	}
	payload, err := wire.Open(pub, env)
	if err != nil {
		return err
	}
	return wire.Deserialize(payload, out)
}

func (e *Engine) keyBookEntries() map[int]wire.KeyBookEntry {
	entries := make(map[int]wire.KeyBookEntry, e.P.N)
	for id := 0; id < e.P.N; id++ {
		pub, _ := e.KeyBook.Primary(id)
		sec, _ := e.KeyBook.Secondary(id)
		pubPEM, _ := wire.EncodePublicKey(pub)
		secPEM, _ := wire.EncodePublicKey(sec)
		entries[id] = wire.KeyBookEntry{PrimaryPub: pubPEM, SecondaryPub: secPEM}
	}
	return entries
}

func (e *Engine) orderedKeys(lookup func(int) (*rsa.PublicKey, error)) ([]*rsa.PublicKey, error) {
	out := make([]*rsa.PublicKey, e.P.N)
	for id := 0; id < e.P.N; id++ {
		pub, err := lookup(id)
		if err != nil {
			return nil, err
		}
		out[id] = pub
	}
	return out, nil
}

func containsBytes(set [][]byte, target []byte) bool {
	for _, b := range set {
		if subtle.ConstantTimeCompare(b, target) == 1 {
			return true
		}
	}
	return false
}
