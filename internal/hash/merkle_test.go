package hash

import (
	"fmt"
	"testing"
)

func leafHashes(t *testing.T, n int) []string {
	t.Helper()
	out := make([]string, n)
	for i := range out {
		sum, err := SHA256.Sum([]byte(fmt.Sprintf("record-%d", i)))
		if err != nil {
			t.Fatal(err)
		}
		out[i] = sum
	}
	return out
}

func TestMerkleTreeEmpty(t *testing.T) {
	mt := NewMerkleTree(SHA256)

	root, err := mt.Root()
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	if root != "" {
		t.Error("Root should be empty for empty tree")
	}
	if _, err := mt.Proof(0); err == nil {
		t.Error("Expected error for proof on empty tree")
	}
}

func TestMerkleTreeSingleLeaf(t *testing.T) {
	mt := NewMerkleTree(SHA256)
	leaves := leafHashes(t, 1)
	mt.AddLeafHash(leaves[0])

	root, err := mt.Root()
	if err != nil {
		t.Fatal(err)
	}
	want, err := SHA256.SumWithDomain(merkleLeafDomain, []byte(leaves[0]))
	if err != nil {
		t.Fatal(err)
	}
	if root != want {
		t.Error("Root of a single leaf tree should be the leaf node digest")
	}
}

func TestMerkleTreeOrderMatters(t *testing.T) {
	leaves := leafHashes(t, 3)

	mt1 := NewMerkleTree(SHA256)
	for _, l := range leaves {
		mt1.AddLeafHash(l)
	}
	mt2 := NewMerkleTree(SHA256)
	mt2.AddLeafHash(leaves[0])
	mt2.AddLeafHash(leaves[2])
	mt2.AddLeafHash(leaves[1])

	root1, _ := mt1.Root()
	root2, _ := mt2.Root()
	if root1 == root2 {
		t.Error("Reordering leaves should change the root")
	}

	mt3 := NewMerkleTree(SHA256)
	for _, l := range leaves {
		mt3.AddLeafHash(l)
	}
	root3, _ := mt3.Root()
	if root1 != root3 {
		t.Error("Same leaves should produce same root")
	}
}

func TestMerkleProofs(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 8, 13} {
		t.Run(fmt.Sprintf("leaves=%d", n), func(t *testing.T) {
			mt := NewMerkleTree(SHA256)
			for _, l := range leafHashes(t, n) {
				mt.AddLeafHash(l)
			}
			root, err := mt.Root()
			if err != nil {
				t.Fatal(err)
			}

			for i := 0; i < n; i++ {
				proof, err := mt.Proof(i)
				if err != nil {
					t.Fatalf("Proof(%d) failed: %v", i, err)
				}
				if proof.Root != root {
					t.Errorf("Proof(%d) root mismatch", i)
				}
				if !proof.Verify(SHA256, root) {
					t.Errorf("Proof(%d) did not verify", i)
				}
			}
		})
	}
}

func TestMerkleProofRejectsTamperedLeaf(t *testing.T) {
	mt := NewMerkleTree(SHA256)
	for _, l := range leafHashes(t, 4) {
		mt.AddLeafHash(l)
	}
	root, _ := mt.Root()

	proof, err := mt.Proof(2)
	if err != nil {
		t.Fatal(err)
	}
	proof.LeafHash = leafHashes(t, 5)[4]

	if proof.Verify(SHA256, root) {
		t.Error("Proof with a substituted leaf should not verify")
	}
}

func TestMerkleProofRejectsInteriorNodeAsLeaf(t *testing.T) {
	mt := NewMerkleTree(SHA256)
	for _, l := range leafHashes(t, 4) {
		mt.AddLeafHash(l)
	}
	root, _ := mt.Root()
	if err := mt.build(); err != nil {
		t.Fatal(err)
	}

	// The left child of the root, offered as a leaf with the right child as its only sibling.
	forged := &MerkleProof{
		LeafHash:   mt.levels[1][0],
		Siblings:   []string{mt.levels[1][1]},
		Directions: []bool{true},
	}
	if forged.Verify(SHA256, root) {
		t.Error("An interior node should not verify as a leaf")
	}
}

func TestMerkleTreeReset(t *testing.T) {
	mt := NewMerkleTree(SHA256)
	for _, l := range leafHashes(t, 2) {
		mt.AddLeafHash(l)
	}

	if mt.LeafCount() != 2 {
		t.Error("Expected 2 leaves before reset")
	}

	mt.Reset()

	if mt.LeafCount() != 0 {
		t.Error("Expected 0 leaves after reset")
	}
	if root, _ := mt.Root(); root != "" {
		t.Error("Root should be empty after reset")
	}
}
