package resque

import "testing"

func TestIdentityStringAndParseRoundTrip(t *testing.T) {
	id := Identity{Host: "host1", PID: 1234, Queues: []string{"high", "low"}}
	s := id.String()
	if want := "host1:1234:high,low"; s != want {
		t.Fatalf("String() = %q, want %q", s, want)
	}

	got, err := ParseIdentity(s)
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}
	if got.Host != id.Host || got.PID != id.PID || len(got.Queues) != 2 {
		t.Fatalf("ParseIdentity round trip mismatch: got %+v", got)
	}
}

func TestParseIdentityQueueListWithColons(t *testing.T) {
	// Only the first two colons are significant; everything after belongs
	// to the queue list, even if it contains further colons.
	got, err := ParseIdentity("host1:99:a,b:c")
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}
	if got.Queues[0] != "a" || got.Queues[1] != "b:c" {
		t.Fatalf("unexpected queues: %v", got.Queues)
	}
}

func TestParseIdentityMalformed(t *testing.T) {
	cases := []string{
		"",
		"onlyhost",
		"host:notanumber:q1",
	}
	for _, c := range cases {
		if _, err := ParseIdentity(c); err == nil {
			t.Errorf("ParseIdentity(%q) expected error, got nil", c)
		}
	}
}

func TestNewIdentityHostnameOverride(t *testing.T) {
	id, err := newIdentity("custom-host", []string{"default"})
	if err != nil {
		t.Fatalf("newIdentity: %v", err)
	}
	if id.Host != "custom-host" {
		t.Fatalf("Host = %q, want %q", id.Host, "custom-host")
	}
	if id.PID <= 0 {
		t.Fatalf("PID = %d, want > 0", id.PID)
	}
}
