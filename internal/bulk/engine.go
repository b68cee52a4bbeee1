package bulk

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"dissent/internal/errs"
	"dissent/internal/primitives"
	"dissent/internal/session"
	"dissent/internal/shuffle"
	"dissent/internal/wire"
)

// State names a point in the four-phase bulk state machine.
type State int

const (
	StateInit State = iota
	StateKeyExchange
	StateDescriptorGen
	StateDescriptorShuffle
	StateTransmit
	StateVerify
	StateDone
	StateAborted
)

// Engine runs one bulk transmission round for a single participant, using
// shuffle.Engine twice: once bare (ExchangeKeys only) to establish this
// node's seed-wrapping key pair, and once in full to anonymize every
// node's descriptor commitment.
type Engine struct {
	P       *session.Participant
	Net     shuffle.Net
	Metrics *session.RoundMetrics

	state State

	seedKeys       *session.KeyBook
	myKey1, myKey2 *rsa.PrivateKey

	myDescriptor []byte // canonical serialized descriptorPayload this node submitted

	slots            [][]byte // descriptor commitments in canonical post-shuffle order
	mySlot           int      // index into slots this node owns, or -1 if not yet found
	finalCiphertexts [][]byte
}

// NewEngine returns an Engine ready to Run a round for p.
func NewEngine(p *session.Participant, net shuffle.Net, metrics *session.RoundMetrics) *Engine {
	return &Engine{
		P: p, Net: net, Metrics: metrics,
		state: StateInit, mySlot: -1,
	}
}

// Run drives all four phases for message, padded to slotLen, returning the
// recovered plaintext for every slot (this node's own message among them,
// at whatever position the shuffle placed it).
func (e *Engine) Run(ctx context.Context, message []byte, slotLen int) ([][]byte, error) {
	if err := e.phase0KeyExchange(ctx); err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateKeyExchange), Err: err}
	}
	if err := e.phase1DescriptorGen(message, slotLen); err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateDescriptorGen), Err: err}
	}
	if err := e.phase2DescriptorShuffle(ctx, slotLen); err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateDescriptorShuffle), Err: err}
	}
	if err := e.phase3Transmit(ctx); err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateTransmit), Err: err}
	}
	if err := e.phase4Verify(ctx); err != nil {
		e.state = StateAborted
		return nil, &errs.RoundError{Phase: int(StateVerify), Err: err}
	}
	e.state = StateDone

	out := make([][]byte, len(e.finalCiphertexts))
	for i, ct := range e.finalCiphertexts {
		pt, err := wire.Unpad(ct)
		if err != nil {
			return nil, &errs.RoundError{Phase: int(StateVerify), Err: err}
		}
		out[i] = pt
	}
	return out, nil
}

// phase0KeyExchange borrows Shuffle's KeyExchange phase wholesale to
// establish every participant's seed-wrapping key pair for this round.
func (e *Engine) phase0KeyExchange(ctx context.Context) error {
	e.state = StateKeyExchange
	e.Metrics.Start("bulk_key_exchange")
	defer e.Metrics.Stop("bulk_key_exchange")

	keyEng := shuffle.NewEngine(e.P, e.Net, e.Metrics)
	if err := keyEng.ExchangeKeys(ctx); err != nil {
		return err
	}
	e.seedKeys = keyEng.KeyBook
	e.myKey1, e.myKey2 = keyEng.RoundKeys()
	return nil
}

// phase1DescriptorGen draws a pairwise pad seed for every other
// participant, builds this node's fully-masked slot ciphertext, and
// assembles the descriptor commitment that phase2 anonymizes.
func (e *Engine) phase1DescriptorGen(message []byte, slotLen int) error {
	e.state = StateDescriptorGen
	e.Metrics.Start("descriptor_gen")
	defer e.Metrics.Stop("descriptor_gen")

	padded, err := wire.PadToLength(message, slotLen)
	if err != nil {
		return err
	}

	encSeeds := make(map[int][]byte, e.P.N-1)
	hashes := make(map[int][]byte, e.P.N-1)
	cipher := padded

	for j := 0; j < e.P.N; j++ {
		if j == e.P.ID {
			continue
		}
		seed, err := drawSeed()
		if err != nil {
			return err
		}

		padBytes, hash, err := pad(seed, slotLen)
		if err != nil {
			return err
		}
		cipher, err = xor(cipher, padBytes)
		if err != nil {
			return err
		}
		hashes[j] = hash

		recipientKey, err := e.seedKeys.Primary(j)
		if err != nil {
			return err
		}
		wrapped, err := primitives.RSAEncrypt(recipientKey, seed)
		if err != nil {
			return err
		}
		encSeeds[j] = wrapped
	}

	descPlain, err := wire.Serialize(descriptorPayload{
		SlotLen:   slotLen,
		Cipher:    cipher,
		EncSeeds:  encSeeds,
		PadHashes: hashes,
	})
	if err != nil {
		return err
	}
	e.myDescriptor = descPlain
	return nil
}

// descriptorOverhead bounds the JSON envelope around n-1 RSA-wrapped seeds
// (each a 128-byte OAEP-wrapped session key plus the 144-byte AES-padded
// seed, 272 bytes, about 372 characters once base64-encoded and keyed)
// plus their SHA-1 commitment hashes (about 36 characters each). Together
// with the base64-encoded slot cipher added by phase2DescriptorShuffle, the
// descriptor shuffle's slot size accommodates every node's commitment
// regardless of slot content length.
func descriptorOverhead(n int) int {
	return n*420 + 512
}

// phase2DescriptorShuffle anonymizes the slot assignment by running one
// complete Shuffle round over every node's descriptor commitment.
func (e *Engine) phase2DescriptorShuffle(ctx context.Context, slotLen int) error {
	e.state = StateDescriptorShuffle
	e.Metrics.Start("descriptor_shuffle")
	defer e.Metrics.Stop("descriptor_shuffle")

	descSlotLen := base64.StdEncoding.EncodedLen(slotLen) + descriptorOverhead(e.P.N)
	shufEng := shuffle.NewEngine(e.P, e.Net, e.Metrics)
	slots, err := shufEng.Run(ctx, e.myDescriptor, descSlotLen)
	if err != nil {
		return err
	}
	e.slots = slots

	for i, s := range slots {
		if subtle.ConstantTimeCompare(s, e.myDescriptor) == 1 {
			e.mySlot = i
			break
		}
	}
	if e.mySlot == -1 {
		return &errs.ProtocolViolation{PeerID: -1, Reason: errs.MissingCiphertext, Detail: "own descriptor missing from shuffled set"}
	}
	return nil
}

// transmitBundle is what each node sends the leader during Transmit: its
// pad contribution for every slot it is a trustee of, keyed by slot index
// in the (globally identical) post-shuffle order.
type transmitBundle struct {
	RoundID       uint64         `json:"round_id"`
	Contributions map[int][]byte `json:"contributions"`
}

// phase3Transmit has every node decrypt the pad seed assigned to it in
// every slot it doesn't own, verify that pad's commitment hash, and send
// its bundle of contributions to the leader, who XOR-combines them with
// each owner's embedded ciphertext and broadcasts the result.
func (e *Engine) phase3Transmit(ctx context.Context) error {
	e.state = StateTransmit
	e.Metrics.Start("transmit")
	defer e.Metrics.Stop("transmit")

	descs := make([]descriptorPayload, len(e.slots))
	for i, raw := range e.slots {
		if err := wire.Deserialize(raw, &descs[i]); err != nil {
			return err
		}
	}

	myBundle := transmitBundle{RoundID: e.P.RoundID, Contributions: make(map[int][]byte)}
	for i, desc := range descs {
		if i == e.mySlot {
			continue
		}
		encSeed, ok := desc.EncSeeds[e.P.ID]
		if !ok {
			continue
		}
		seed, err := primitives.RSADecrypt(e.myKey1, encSeed)
		if err != nil {
			return &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "pairwise seed unwrap failed"}
		}
		padBytes, hash, err := pad(seed, desc.SlotLen)
		if err != nil {
			return err
		}
		wantHash, ok := desc.PadHashes[e.P.ID]
		if !ok || !bytes.Equal(hash, wantHash) {
			// The descriptor's author is anonymous at this point by design
			// (phase2's whole purpose); only the slot it occupies in the
			// shuffled set is known, not the peer id that authored it.
			return &errs.ProtocolViolation{PeerID: -1, Reason: errs.BadHash, Detail: fmt.Sprintf("pad hash mismatch for assigned slot %d", i)}
		}
		myBundle.Contributions[i] = padBytes
	}

	payload, err := wire.Serialize(myBundle)
	if err != nil {
		return err
	}

	var bundles []transmitBundle
	if e.P.IsLeader() {
		raws, err := e.Net.CollectFromAll(ctx)
		if err != nil {
			return err
		}
		bundles = append(bundles, myBundle)
		for _, raw := range raws {
			var b transmitBundle
			if err := wire.Deserialize(raw, &b); err != nil {
				return err
			}
			if b.RoundID != e.P.RoundID {
				return &errs.ProtocolViolation{PeerID: -1, Reason: errs.RoundMismatch}
			}
			bundles = append(bundles, b)
		}

		combined := make([][]byte, len(descs))
		for i, desc := range descs {
			combined[i] = append([]byte(nil), desc.Cipher...)
		}
		for _, b := range bundles {
			for i, pads := range b.Contributions {
				if i < 0 || i >= len(combined) {
					return &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "contribution slot index out of range"}
				}
				combined[i], err = xor(combined[i], pads)
				if err != nil {
					return err
				}
			}
		}
		e.finalCiphertexts = combined

		finalPayload, err := wire.Serialize(combined)
		if err != nil {
			return err
		}
		if err := e.Net.BroadcastFromLeader(ctx, finalPayload); err != nil {
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
		var combined [][]byte
		if err := wire.Deserialize(raw, &combined); err != nil {
			return err
		}
		e.finalCiphertexts = combined
	}
	return nil
}

// phase4Verify has every node hash the combined final ciphertext set and
// exchange signed commitments through the leader, aborting if any two
// nodes disagree on what the round produced.
func (e *Engine) phase4Verify(ctx context.Context) error {
	e.state = StateVerify
	e.Metrics.Start("bulk_verify")
	defer e.Metrics.Stop("bulk_verify")

	hash, err := wire.HashList(e.finalCiphertexts)
	if err != nil {
		return err
	}
	vote := wire.BulkCheatHash{SenderID: e.P.ID, RoundID: e.P.RoundID, Hash: hash}
	payload, err := e.sealFor(vote)
	if err != nil {
		return err
	}

	var votes []wire.BulkCheatHash
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
			var v wire.BulkCheatHash
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
			return &errs.ProtocolViolation{PeerID: v.SenderID, Reason: errs.RoundMismatch}
		}
		if !bytes.Equal(v.Hash, hash) {
			return &errs.ProtocolViolation{PeerID: v.SenderID, Reason: errs.BadHash}
		}
	}
	return nil
}

// sealFor and openSigned sign and verify against this round's own key1, the
// same key established via phase0KeyExchange's trust-on-first-use Shuffle
// round (internal/shuffle.Engine.phase1KeyExchange) — Bulk has no identity
// layer of its own, just like Shuffle.
func (e *Engine) sealFor(msg any) ([]byte, error) {
	body, err := wire.Serialize(msg)
	if err != nil {
		return nil, err
	}
	env, err := wire.Seal(e.myKey1, e.P.ID, body)
	if err != nil {
		return nil, err
	}
	return wire.Serialize(env)
}

func (e *Engine) openSigned(env wire.SignedEnvelope, out any) error {
	pub, err := e.seedKeys.Primary(env.SenderID)
	if err != nil {
		return err
	}
	payload, err := wire.Open(pub, env)
	if err != nil {
		return err
	}
	return wire.Deserialize(payload, out)
}
