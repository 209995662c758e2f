package keyderivation

import (
	"bytes"
	"testing"
)

func TestPlaceholder(t *testing.T) {
	derive := Placeholder(5, 0xB988, 0x8749, 0x06D3, 0xCFDF)

	tests := []struct {
		name string
		seed []byte
		want []byte
	}{
		{
			name: "two byte seed",
			seed: []byte{0x12, 0x34},
			want: []byte{0x2B, 0xFC},
		},
		{
			name: "zero seed still derives",
			seed: []byte{0x00, 0x00},
			want: []byte{0x8A, 0x4B},
		},
		{
			name: "single byte seed",
			seed: []byte{0x34},
			want: []byte{0x2A, 0x4C},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := derive(tt.seed, 0x05)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("derive(% X) = % X, want % X", tt.seed, got, tt.want)
			}
		})
	}
}

func TestPlaceholderDeterministic(t *testing.T) {
	derive := Placeholder(5, 0xB988, 0x8749, 0x06D3, 0xCFDF)
	seed := []byte{0xCC, 0x55}
	a := derive(seed, 0x05)
	b := derive(seed, 0x05)
	if !bytes.Equal(a, b) {
		t.Errorf("derive not deterministic: % X vs % X", a, b)
	}
	if len(a) != 2 {
		t.Errorf("key length = %d, want 2", len(a))
	}
}

func TestCMAC(t *testing.T) {
	secret := []byte{
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
	}
	derive, err := CMAC(secret, 4)
	if err != nil {
		t.Fatalf("CMAC() error: %v", err)
	}

	seed := []byte{0xCC, 0x55, 0x4A, 0xF6}
	key := derive(seed, 0x05)
	if len(key) != 4 {
		t.Fatalf("key length = %d, want 4", len(key))
	}
	if again := derive(seed, 0x05); !bytes.Equal(key, again) {
		t.Errorf("derive not deterministic: % X vs % X", key, again)
	}
}

func TestCMACErrors(t *testing.T) {
	goodSecret := make([]byte, 16)
	tests := []struct {
		name   string
		secret []byte
		keyLen int
	}{
		{name: "bad secret length", secret: make([]byte, 5), keyLen: 4},
		{name: "key length zero", secret: goodSecret, keyLen: 0},
		{name: "key length over mac size", secret: goodSecret, keyLen: 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CMAC(tt.secret, tt.keyLen); err == nil {
				t.Error("CMAC() expected error")
			}
		})
	}
}
