package fhe

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testContract = common.HexToAddress("0xc0de")
	testUser     = common.HexToAddress("0xa11c")
	testOther    = common.HexToAddress("0xb0b0")
)

func testCoprocessor(t *testing.T) *Coprocessor {
	t.Helper()
	c, err := NewCoprocessor(testContract, testBits)
	if err != nil {
		t.Fatalf("coprocessor setup failed: %v", err)
	}
	return c
}

// admit encrypts and admits a value as testUser.
func admit(t *testing.T, c *Coprocessor, v uint64) Handle {
	t.Helper()
	cts, proof, err := EncryptInput(c.PublicKey(), testContract, testUser, v)
	if err != nil {
		t.Fatalf("EncryptInput failed: %v", err)
	}
	h, err := c.VerifyInput(cts[0], proof, testUser)
	if err != nil {
		t.Fatalf("VerifyInput failed: %v", err)
	}
	return h
}

func TestInputAdmission(t *testing.T) {
	t.Run("Valid Proof Admits", func(t *testing.T) {
		c := testCoprocessor(t)
		h := admit(t, c, 42)
		v, err := c.Decrypt64(h, c.contract)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if v != 42 {
			t.Errorf("decrypted %d, want 42", v)
		}
	})

	t.Run("Tampered Proof Rejected", func(t *testing.T) {
		c := testCoprocessor(t)
		cts, proof, err := EncryptInput(c.PublicKey(), testContract, testUser, 42)
		if err != nil {
			t.Fatalf("EncryptInput failed: %v", err)
		}
		proof[0] ^= 0xff
		if _, err := c.VerifyInput(cts[0], proof, testUser); !errors.Is(err, ErrAdmission) {
			t.Errorf("err = %v, want ErrAdmission", err)
		}
	})

	t.Run("Wrong Submitter Rejected", func(t *testing.T) {
		c := testCoprocessor(t)
		cts, proof, err := EncryptInput(c.PublicKey(), testContract, testUser, 42)
		if err != nil {
			t.Fatalf("EncryptInput failed: %v", err)
		}
		if _, err := c.VerifyInput(cts[0], proof, testOther); !errors.Is(err, ErrAdmission) {
			t.Errorf("err = %v, want ErrAdmission", err)
		}
	})

	t.Run("Wrong Contract Rejected", func(t *testing.T) {
		c := testCoprocessor(t)
		cts, proof, err := EncryptInput(c.PublicKey(), testOther, testUser, 42)
		if err != nil {
			t.Fatalf("EncryptInput failed: %v", err)
		}
		if _, err := c.VerifyInput(cts[0], proof, testUser); !errors.Is(err, ErrAdmission) {
			t.Errorf("err = %v, want ErrAdmission", err)
		}
	})

	t.Run("Batch Admission Is All Or Nothing", func(t *testing.T) {
		c := testCoprocessor(t)
		cts, proof, err := EncryptInput(c.PublicKey(), testContract, testUser, 1, 2, 3)
		if err != nil {
			t.Fatalf("EncryptInput failed: %v", err)
		}
		hs, err := c.VerifyInputs(cts, proof, testUser)
		if err != nil {
			t.Fatalf("VerifyInputs failed: %v", err)
		}
		if len(hs) != 3 {
			t.Fatalf("admitted %d handles, want 3", len(hs))
		}
		for i, h := range hs {
			v, err := c.Decrypt64(h, testUser)
			if err != nil {
				t.Errorf("submitter decrypt of batch handle %d failed: %v", i, err)
			} else if v != uint64(i+1) {
				t.Errorf("batch handle %d = %d, want %d", i, v, i+1)
			}
		}
		// Dropping one ciphertext invalidates the shared proof.
		if _, err := c.VerifyInputs(cts[:2], proof, testUser); !errors.Is(err, ErrAdmission) {
			t.Errorf("partial batch err = %v, want ErrAdmission", err)
		}
	})

	t.Run("Submitter Gets A Grant", func(t *testing.T) {
		c := testCoprocessor(t)
		h := admit(t, c, 42)
		if v, err := c.Decrypt64(h, testUser); err != nil || v != 42 {
			t.Errorf("submitter decrypt = %d, %v; want 42, nil", v, err)
		}
	})
}

func TestHomomorphicOps(t *testing.T) {
	c := testCoprocessor(t)
	a := admit(t, c, 1000)
	b := admit(t, c, 300)

	t.Run("Add", func(t *testing.T) {
		h, err := c.Add(a, b)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if v, _ := c.Decrypt64(h, c.contract); v != 1300 {
			t.Errorf("1000 + 300 = %d", v)
		}
	})

	t.Run("Sub", func(t *testing.T) {
		h, err := c.Sub(a, b)
		if err != nil {
			t.Fatalf("Sub failed: %v", err)
		}
		if v, _ := c.Decrypt64(h, c.contract); v != 700 {
			t.Errorf("1000 - 300 = %d", v)
		}
	})

	t.Run("Mul", func(t *testing.T) {
		h, err := c.Mul(a, b)
		if err != nil {
			t.Fatalf("Mul failed: %v", err)
		}
		if v, _ := c.Decrypt64(h, c.contract); v != 300000 {
			t.Errorf("1000 * 300 = %d", v)
		}
	})

	t.Run("Div", func(t *testing.T) {
		h, err := c.Div(a, b)
		if err != nil {
			t.Fatalf("Div failed: %v", err)
		}
		if v, _ := c.Decrypt64(h, c.contract); v != 3 {
			t.Errorf("1000 / 300 = %d", v)
		}
	})

	t.Run("Div By Zero", func(t *testing.T) {
		zero := c.TrivialEncrypt(0)
		if _, err := c.Div(a, zero); !errors.Is(err, ErrDivisionByZero) {
			t.Errorf("err = %v, want ErrDivisionByZero", err)
		}
	})

	t.Run("Underflow Fails Range Check", func(t *testing.T) {
		h, err := c.Sub(b, a)
		if err != nil {
			t.Fatalf("Sub failed: %v", err)
		}
		if _, err := c.Decrypt64(h, c.contract); !errors.Is(err, ErrValueRange) {
			t.Errorf("err = %v, want ErrValueRange", err)
		}
	})

	t.Run("Unknown Handle", func(t *testing.T) {
		if _, err := c.Add(a, Handle{0x01}); !errors.Is(err, ErrUnknownHandle) {
			t.Errorf("err = %v, want ErrUnknownHandle", err)
		}
	})
}

func TestComparisons(t *testing.T) {
	c := testCoprocessor(t)
	a := admit(t, c, 1000)
	b := admit(t, c, 300)

	cases := []struct {
		name string
		op   func(x, y Handle) (Handle, error)
		x, y Handle
		want bool
	}{
		{"Gte True", c.Gte, a, b, true},
		{"Gte False", c.Gte, b, a, false},
		{"Gte Equal", c.Gte, a, a, true},
		{"Eq True", c.Eq, a, a, true},
		{"Eq False", c.Eq, a, b, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := tc.op(tc.x, tc.y)
			if err != nil {
				t.Fatalf("comparison failed: %v", err)
			}
			got, err := c.RevealBool(h)
			if err != nil {
				t.Fatalf("RevealBool failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	t.Run("RevealBool Rejects Integer Handles", func(t *testing.T) {
		if _, err := c.RevealBool(a); !errors.Is(err, ErrKindMismatch) {
			t.Errorf("err = %v, want ErrKindMismatch", err)
		}
	})
}

func TestAccessControl(t *testing.T) {
	t.Run("No Grant No Decrypt", func(t *testing.T) {
		c := testCoprocessor(t)
		h := admit(t, c, 42)
		if _, err := c.Decrypt64(h, testOther); !errors.Is(err, ErrNotAllowed) {
			t.Errorf("err = %v, want ErrNotAllowed", err)
		}
	})

	t.Run("Allow Grants Decryption", func(t *testing.T) {
		c := testCoprocessor(t)
		h := admit(t, c, 42)
		if err := c.Allow(h, testOther); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if v, err := c.Decrypt64(h, testOther); err != nil || v != 42 {
			t.Errorf("decrypt after grant = %d, %v; want 42, nil", v, err)
		}
	})

	t.Run("Derived Handles Need Fresh Grants", func(t *testing.T) {
		c := testCoprocessor(t)
		a := admit(t, c, 40)
		b := admit(t, c, 2)
		sum, err := c.Add(a, b)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if _, err := c.Decrypt64(sum, testUser); !errors.Is(err, ErrNotAllowed) {
			t.Errorf("err = %v, want ErrNotAllowed", err)
		}
	})

	t.Run("Trivial Constants Are Public", func(t *testing.T) {
		c := testCoprocessor(t)
		h := c.TrivialEncrypt(7)
		if !c.IsAllowed(h, testOther) {
			t.Error("trivial handle not readable by arbitrary principal")
		}
		if v, err := c.Decrypt64(h, testOther); err != nil || v != 7 {
			t.Errorf("trivial decrypt = %d, %v; want 7, nil", v, err)
		}
	})

	t.Run("Trivial Encryption Is Deterministic", func(t *testing.T) {
		c := testCoprocessor(t)
		if c.TrivialEncrypt(0) != c.TrivialEncrypt(0) {
			t.Error("trivial handles for the same constant differ")
		}
	})

	t.Run("Grant On Unknown Handle", func(t *testing.T) {
		c := testCoprocessor(t)
		if err := c.Allow(Handle{0x01}, testUser); !errors.Is(err, ErrUnknownHandle) {
			t.Errorf("err = %v, want ErrUnknownHandle", err)
		}
	})
}

func TestCoprocessorSnapshotRestore(t *testing.T) {
	c := testCoprocessor(t)
	h := admit(t, c, 42)
	if err := c.Allow(h, testOther); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	trivial := c.TrivialEncrypt(7)

	restored, err := RestoreCoprocessor(c.Snapshot())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if v, err := restored.Decrypt64(h, testOther); err != nil || v != 42 {
		t.Errorf("restored decrypt = %d, %v; want 42, nil", v, err)
	}
	if _, err := restored.Decrypt64(h, common.HexToAddress("0xdead")); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("restored ACL err = %v, want ErrNotAllowed", err)
	}
	if v, err := restored.Decrypt64(trivial, testOther); err != nil || v != 7 {
		t.Errorf("restored trivial decrypt = %d, %v; want 7, nil", v, err)
	}
	// Handle derivation must agree across the restore.
	if restored.TrivialEncrypt(7) != trivial {
		t.Error("trivial handle changed across restore")
	}
}
