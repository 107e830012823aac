package semantic

import "testing"

func TestShortDigest(t *testing.T) {
	key := MakeKey(userProfileDescriptor(), authRecordDescriptor())

	first := ShortDigest(key)
	if first == "" {
		t.Fatal("expected non-empty digest")
	}
	if len(first) > 12 {
		t.Errorf("digest too long for a table column: %q", first)
	}
	if ShortDigest(key) != first {
		t.Error("digest not deterministic")
	}

	other := ShortDigest(MakeKey(authRecordDescriptor(), userProfileDescriptor()))
	if other == first {
		t.Error("expected different keys to digest differently")
	}
}
