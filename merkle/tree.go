// Package merkle implements the fixed-depth sparse balance tree that
// backs the rollup's account state. Every leaf is addressed by account
// id; unset leaves hash to a precomputed empty value so the tree never
// needs to materialize more than the accounts actually touched.
package merkle

import (
	"errors"
	"sync"

	"github.com/plasmafold/rollup/field"
	"github.com/plasmafold/rollup/pedersen"
)

// Depth is the fixed depth of the balance tree (BALANCE_TREE_DEPTH),
// giving capacity for 2^Depth accounts.
const Depth = 24

// Capacity is the number of account ids the tree can address.
const Capacity = 1 << Depth

var (
	// ErrIndexOutOfRange is returned when an account id exceeds Capacity.
	ErrIndexOutOfRange = errors.New("merkle: account id out of range")
)

// emptyHashes[i] is the Pedersen hash of an empty subtree of height i,
// where height 0 is an empty leaf. Memoizing these lets insert and path
// skip every all-empty subtree instead of hashing the whole tree.
var emptyHashes [Depth + 1]field.Element

func init() {
	emptyHashes[0] = field.Zero()
	for i := 1; i <= Depth; i++ {
		emptyHashes[i] = hashNode(i-1, emptyHashes[i-1], emptyHashes[i-1])
	}
}

// hashNode hashes two children at the given child depth (0 = just above
// the leaves) under the MerkleTree(depth) personalization.
func hashNode(childDepth int, left, right field.Element) field.Element {
	bits := append(field.BitsLE(left, field.BitWidth), field.BitsLE(right, field.BitWidth)...)
	return pedersen.HashX(pedersen.MerkleTreeTag(childDepth), bits)
}

// EmptyLeafHash returns the hash of an unset leaf (height 0 of the empty
// subtree memo).
func EmptyLeafHash() field.Element {
	return emptyHashes[0]
}

// Tree is the balance tree. Only non-empty leaves are stored; siblings on
// any authentication path fall back to the empty-subtree memo.
type Tree struct {
	mu    sync.RWMutex
	leafs map[uint64]field.Element // account id -> leaf hash, non-empty only
	root  field.Element
}

// New creates an empty tree of Depth.
func New() *Tree {
	return &Tree{
		leafs: make(map[uint64]field.Element),
		root:  emptyHashes[Depth],
	}
}

// Root returns the current tree root.
func (t *Tree) Root() field.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Get returns the leaf hash at index, or the empty-leaf hash if unset.
func (t *Tree) Get(index uint64) (field.Element, error) {
	if index >= Capacity {
		return field.Element{}, ErrIndexOutOfRange
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h, ok := t.leafs[index]; ok {
		return h, nil
	}
	return emptyHashes[0], nil
}

// Path returns the Depth sibling hashes from the leaf at index up to
// (but not including) the root, ordered leaf-first. This is exactly the
// witness the circuit uses to ascend the tree twice per operation.
func (t *Tree) Path(index uint64) ([]field.Element, error) {
	if index >= Capacity {
		return nil, ErrIndexOutOfRange
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pathLocked(index), nil
}

func (t *Tree) pathLocked(index uint64) []field.Element {
	siblings := make([]field.Element, Depth)
	for d := 0; d < Depth; d++ {
		siblingIdx := index ^ 1
		siblings[d] = t.subtreeRootLocked(d, siblingIdx)
		index >>= 1
	}
	return siblings
}

// subtreeRootLocked returns the root of the subtree of height h rooted at
// the given index within that height's row, recursing down to stored
// leaves or the empty-subtree memo. This rebuild-on-read approach mirrors
// the teacher's incremental-root construction but supports arbitrary
// keyed insertion rather than only append.
func (t *Tree) subtreeRootLocked(height int, index uint64) field.Element {
	if height == 0 {
		if h, ok := t.leafs[index]; ok {
			return h
		}
		return emptyHashes[0]
	}
	// A subtree at height h is non-empty only if some stored leaf falls
	// under it; since account counts are small relative to 2^Depth we
	// simply recompute from the two children, short-circuiting to the
	// memoized empty hash when neither child has any stored descendant.
	left := index << 1
	right := left | 1
	span := uint64(1) << height
	if !t.hasAnyLocked(left, span/2) && !t.hasAnyLocked(right, span/2) {
		return emptyHashes[height]
	}
	lh := t.subtreeRootLocked(height-1, left)
	rh := t.subtreeRootLocked(height-1, right)
	return hashNode(height-1, lh, rh)
}

// hasAnyLocked reports whether any stored leaf falls in [base*span, (base+1)*span).
func (t *Tree) hasAnyLocked(base, span uint64) bool {
	if span <= 1 {
		_, ok := t.leafs[base]
		return ok
	}
	lo := base * span
	hi := lo + span
	for idx := range t.leafs {
		if idx >= lo && idx < hi {
			return true
		}
	}
	return false
}

// Insert sets the leaf at index to the given hash and recomputes the
// root from every stored leaf: internal nodes are not cached, so each
// call rehashes every non-empty internal node (O(accounts * Depth)
// Pedersen hashes), and each node visited runs a subtree-membership scan
// over the leaf map (O(accounts)). This is adequate for the batch
// sizes this rollup processes (single-digit deposits/exits, 8-wide
// transfer batches) but would need the teacher's filled-subtree cache for
// very large account sets.
func (t *Tree) Insert(index uint64, leaf field.Element) error {
	if index >= Capacity {
		return ErrIndexOutOfRange
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leafs[index] = leaf
	t.root = t.subtreeRootLocked(Depth, 0)
	return nil
}

// Ascend recomputes the root implied by leaf, index, and siblings by
// hashing up the authentication path. This is the same ascent the deposit,
// transfer, and exit circuits each perform twice per request: once for the
// old leaf, once for the new one, over the same siblings.
func Ascend(leaf field.Element, index uint64, siblings []field.Element) (field.Element, error) {
	if len(siblings) != Depth {
		return field.Element{}, ErrIndexOutOfRange
	}
	cur := leaf
	for d := 0; d < Depth; d++ {
		if index&1 == 0 {
			cur = hashNode(d, cur, siblings[d])
		} else {
			cur = hashNode(d, siblings[d], cur)
		}
		index >>= 1
	}
	return cur, nil
}

// VerifyPath recomputes the root implied by leaf, index, and siblings and
// reports whether it matches root. Used to check a witnessed
// authentication path outside of an actual proving system.
func VerifyPath(leaf field.Element, index uint64, siblings []field.Element, root field.Element) bool {
	cur, err := Ascend(leaf, index, siblings)
	if err != nil {
		return false
	}
	return cur.Equal(&root)
}
