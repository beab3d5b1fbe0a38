package hasher

import "testing"

func TestDigest(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := Digest([]byte("hello"))
		b := Digest([]byte("hello"))
		if a != b {
			t.Fatalf("identical buffers hashed differently: %s vs %s", a, b)
		}
	})

	t.Run("known vector", func(t *testing.T) {
		// sha256("") is a fixed constant
		want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
		if got := Digest(nil); got != want {
			t.Fatalf("Digest(nil) = %s, want %s", got, want)
		}
	})

	t.Run("distinct content distinct hash", func(t *testing.T) {
		if Digest([]byte("a")) == Digest([]byte("b")) {
			t.Fatal("different buffers produced the same digest")
		}
	})

	t.Run("length", func(t *testing.T) {
		if got := len(Digest([]byte("x"))); got != 64 {
			t.Fatalf("digest length = %d, want 64", got)
		}
	})
}
