package probes

import "testing"

func TestGetAllDescriptions(t *testing.T) {
	descs := GetAllDescriptions()
	if len(descs) == 0 {
		t.Fatal("expected at least one built-in probe")
	}
	seen := make(map[string]bool)
	for _, d := range descs {
		if d.Subcommand == "" {
			t.Errorf("probe %q has no subcommand", d.Name)
		}
		if seen[d.Subcommand] {
			t.Errorf("duplicate subcommand %q", d.Subcommand)
		}
		seen[d.Subcommand] = true
	}
}
