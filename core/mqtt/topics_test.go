package mqtt

import "testing"

func TestTopics(t *testing.T) {
	if got := MachineTopic("machine/", "m1", KindBrew); got != "machine/m1/brew" {
		t.Fatalf("brew topic %q", got)
	}
	if got := Sub("machine/", "state"); got != "machine/state" {
		t.Fatalf("state prefix %q", got)
	}
	if got := Wildcard("machine/state/"); got != "machine/state/+" {
		t.Fatalf("wildcard %q", got)
	}
	if got := MachineIDFromTopic("machine/state/m42"); got != "m42" {
		t.Fatalf("id %q", got)
	}
	if got := MachineIDFromTopic("m7"); got != "m7" {
		t.Fatalf("bare id %q", got)
	}
}
