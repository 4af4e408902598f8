package crypto

import (
	"testing"
)

func TestSecureMemoryHandling(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate keypair: %v", err)
	}

	if isZeroKey(kp.Private[:]) {
		t.Fatalf("Private key is all zeros before wiping, test cannot proceed")
	}
	if err := SecureWipe(kp.Private[:]); err != nil {
		t.Fatalf("SecureWipe failed: %v", err)
	}
	if !isZeroKey(kp.Private[:]) {
		t.Fatalf("Private key data was not securely wiped by SecureWipe")
	}

	kp2, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate second keypair: %v", err)
	}
	if err := WipeKeyPair(kp2); err != nil {
		t.Fatalf("WipeKeyPair failed: %v", err)
	}
	if !isZeroKey(kp2.Private[:]) {
		t.Fatalf("Private key data was not securely wiped by WipeKeyPair")
	}
	if err := WipeKeyPair(nil); err == nil {
		t.Fatal("WipeKeyPair accepted a nil KeyPair")
	}

	testData := []byte{1, 2, 3, 4, 5}
	ZeroBytes(testData)
	for i, b := range testData {
		if b != 0 {
			t.Fatalf("ZeroBytes failed to zero byte at position %d", i)
		}
	}
}

// TestSecureWipeEdgeCases tests edge cases for SecureWipe
func TestSecureWipeEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		expectErr bool
	}{
		{
			name:      "nil slice",
			input:     nil,
			expectErr: true,
		},
		{
			name:      "empty slice",
			input:     []byte{},
			expectErr: false,
		},
		{
			name:      "single byte",
			input:     []byte{0xFF},
			expectErr: false,
		},
		{
			name:      "large buffer",
			input:     make([]byte, 1024),
			expectErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.input {
				tt.input[i] = byte(i % 256)
			}

			err := SecureWipe(tt.input)

			if tt.expectErr && err == nil {
				t.Errorf("Expected error but got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}

			if !tt.expectErr {
				for i, b := range tt.input {
					if b != 0 {
						t.Errorf("Byte at position %d was not zeroed: got %d", i, b)
					}
				}
			}
		})
	}
}
