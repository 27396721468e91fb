package hash

import (
	"fmt"
)

// Leaf and interior digests use distinct domains, so an interior node can
// never be passed off as a leaf.
const (
	merkleLeafDomain = "landledger/merkle/leaf/v1"
	merkleNodeDomain = "landledger/merkle/node/v1"
)

// MerkleTree is an ordered binary hash tree over leaf digests.
// Leaves keep insertion order, so the root commits to the order of the chain.
// An odd node at the end of a level is paired with itself.
type MerkleTree struct {
	algorithm Algorithm
	leaves    []string
	levels    [][]string
}

type MerkleProof struct {
	LeafHash  string   `json:"leaf_hash"`
	LeafIndex int      `json:"leaf_index"`
	Siblings  []string `json:"siblings"`
	// Directions[i] is true when the node is on the left and Siblings[i] on the right.
	Directions []bool `json:"directions"`
	Root       string `json:"root"`
}

func NewMerkleTree(algorithm Algorithm) *MerkleTree {
	return &MerkleTree{
		algorithm: algorithm,
		leaves:    make([]string, 0),
	}
}

func (mt *MerkleTree) AddLeafHash(hash string) {
	mt.leaves = append(mt.leaves, hash)
	mt.levels = nil
}

func (mt *MerkleTree) LeafCount() int {
	return len(mt.leaves)
}

func (mt *MerkleTree) Reset() {
	mt.leaves = make([]string, 0)
	mt.levels = nil
}

func (mt *MerkleTree) build() error {
	if mt.levels != nil {
		return nil
	}
	if len(mt.leaves) == 0 {
		return fmt.Errorf("no leaves to build tree")
	}

	level := make([]string, len(mt.leaves))
	for i, leaf := range mt.leaves {
		node, err := mt.algorithm.leafNode(leaf)
		if err != nil {
			return err
		}
		level[i] = node
	}
	levels := [][]string{level}

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			parent, err := mt.algorithm.interiorNode(level[i], right)
			if err != nil {
				return err
			}
			next = append(next, parent)
		}
		levels = append(levels, next)
		level = next
	}

	mt.levels = levels
	return nil
}

// Root returns the tree root, or "" for an empty tree.
func (mt *MerkleTree) Root() (string, error) {
	if len(mt.leaves) == 0 {
		return "", nil
	}
	if err := mt.build(); err != nil {
		return "", err
	}
	top := mt.levels[len(mt.levels)-1]
	return top[0], nil
}

func (mt *MerkleTree) Proof(index int) (*MerkleProof, error) {
	if index < 0 || index >= len(mt.leaves) {
		return nil, fmt.Errorf("leaf index %d out of range", index)
	}
	if err := mt.build(); err != nil {
		return nil, err
	}

	proof := &MerkleProof{
		LeafHash:   mt.leaves[index],
		LeafIndex:  index,
		Siblings:   make([]string, 0),
		Directions: make([]bool, 0),
	}

	pos := index
	for _, level := range mt.levels[:len(mt.levels)-1] {
		if pos%2 == 0 {
			sibling := level[pos]
			if pos+1 < len(level) {
				sibling = level[pos+1]
			}
			proof.Siblings = append(proof.Siblings, sibling)
			proof.Directions = append(proof.Directions, true)
		} else {
			proof.Siblings = append(proof.Siblings, level[pos-1])
			proof.Directions = append(proof.Directions, false)
		}
		pos /= 2
	}

	proof.Root = mt.levels[len(mt.levels)-1][0]
	return proof, nil
}

// Verify recomputes the path from the leaf and compares it to expectedRoot.
func (mp *MerkleProof) Verify(algorithm Algorithm, expectedRoot string) bool {
	if len(mp.Siblings) != len(mp.Directions) {
		return false
	}

	current, err := algorithm.leafNode(mp.LeafHash)
	if err != nil {
		return false
	}
	for i, sibling := range mp.Siblings {
		if mp.Directions[i] {
			current, err = algorithm.interiorNode(current, sibling)
		} else {
			current, err = algorithm.interiorNode(sibling, current)
		}
		if err != nil {
			return false
		}
	}

	return current == expectedRoot
}

func (a Algorithm) leafNode(leaf string) (string, error) {
	return a.SumWithDomain(merkleLeafDomain, []byte(leaf))
}

func (a Algorithm) interiorNode(left, right string) (string, error) {
	return a.SumWithDomain(merkleNodeDomain, []byte(left+right))
}
