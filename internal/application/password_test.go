package application

import (
	"errors"
	"strings"
	"testing"
)

var fastPasswordParams = PasswordParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := HashPasswordWith("correct horse", fastPasswordParams)
	if err != nil {
		t.Fatalf("HashPasswordWith returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}
	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("VerifyPassword rejected the right password: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	other, _ := HashPasswordWith("correct horse", fastPasswordParams)
	if other == hash {
		t.Fatalf("hashes must be salted")
	}
}

func TestVerifyPasswordMalformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		hash string
		want error
	}{
		{name: "empty", hash: "", want: ErrInvalidPasswordHash},
		{name: "other scheme", hash: "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5", want: ErrInvalidPasswordHash},
		{name: "old version", hash: "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$a2V5", want: ErrIncompatiblePasswordVersion},
		{name: "bad params", hash: "$argon2id$v=19$m=x$c2FsdA$a2V5", want: ErrInvalidPasswordHash},
		{name: "bad salt", hash: "$argon2id$v=19$m=1,t=1,p=1$!!$a2V5", want: ErrInvalidPasswordHash},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := VerifyPassword(tc.hash, "pw"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
